package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trustops/internal/app"
	"trustops/internal/config"
	"trustops/internal/db"
	"trustops/internal/domain"
	"trustops/internal/engine"
	"trustops/internal/export"
	"trustops/internal/migrate"
	"trustops/internal/repo"
	"trustops/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "grc",
	Short: "TrustOps CLI",
	Long: `TrustOps manages an organization's governance, risk and compliance register.
Core concepts:
- Workspace: your .trustops directory with only the database; the org config lives in the DB and is imported explicitly.
- Organization: the company profile that owns all issues, stakeholders, risks and audits.
- Issues: compliance findings and obligations; statuses go open -> in_review -> mitigated/closed.
- Stakeholders: interested parties with their needs and expectations.
- Risks: scored likelihood x impact against the org's configured matrix, banded low/medium/high/critical.
- Assets and audits: what you protect and how you verify it.
- Options: extendable pick lists (domains, categories, issue types, need expectations).
- Event log: diary of changes, view with 'grc log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRUSTOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("org", "", "organization id (overrides single-org default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("org", rootCmd.PersistentFlags().Lookup("org"))
}

func registerCommands() {
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(stakeholderCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(assetCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(optionCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage the organization profile"}
	org.AddCommand(orgShowCmd())
	org.AddCommand(orgUpdateCmd())
	org.AddCommand(orgConfigCmd())
	return org
}

func orgShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the organization profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Repo.GetOrganization(ctx, e.Config.Organization.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func orgUpdateCmd() *cobra.Command {
	var name, industry, size, country, description string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the organization profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				cur, err := e.Repo.GetOrganization(ctx, e.Config.Organization.ID)
				if err != nil {
					return err
				}
				cur.Name = name
				if cmd.Flags().Changed("industry") {
					cur.Industry = industry
				}
				if cmd.Flags().Changed("size") {
					cur.Size = size
				}
				if cmd.Flags().Changed("country") {
					cur.Country = country
				}
				if cmd.Flags().Changed("description") {
					cur.Description = description
				}
				updated, err := e.UpdateOrganization(ctx, cur, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "organization name")
	cmd.Flags().StringVar(&industry, "industry", "", "industry")
	cmd.Flags().StringVar(&size, "size", "", "size bracket")
	cmd.Flags().StringVar(&country, "country", "", "country")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func orgConfigCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage the organization config"}
	cfg.AddCommand(orgConfigShowCmd())
	cfg.AddCommand(orgConfigImportCmd())
	return cfg
}

func orgConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the organization config stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func orgConfigImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import organization config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				orgID := cfg.Organization.ID
				if orgID == "" {
					orgID = e.Config.Organization.ID
				}
				if err := e.ImportOrgConfig(ctx, orgID, cfg, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func issueCmd() *cobra.Command {
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Manage compliance issues",
		Long:  "Issues are compliance findings and obligations. They flow open -> in_review -> mitigated/closed, link to regulations and processes, and land in the audit trail.",
	}
	issue.AddCommand(issueListCmd())
	issue.AddCommand(issueCreateCmd())
	issue.AddCommand(issueShowCmd())
	issue.AddCommand(issueDeleteCmd())
	issue.AddCommand(issueExportCmd())
	issue.AddCommand(issueImportCmd())
	return issue
}

func issueListCmd() *cobra.Command {
	var f repo.IssueFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.OrgID == "" {
					f.OrgID = e.Config.Organization.ID
				}
				issues, err := e.Repo.ListIssues(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issues)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Domain", "Status", "Department"})
				for _, i := range issues {
					dept := ""
					if i.DepartmentID != nil {
						dept = *i.DepartmentID
					}
					tw.AppendRow(table.Row{i.ID, i.Title, i.Domain, i.Status, dept})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Domain, "domain", "", "domain filter")
	cmd.Flags().StringVar(&f.DepartmentID, "department", "", "department id filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func issueCreateCmd() *cobra.Command {
	var opts engine.IssueOptions
	var regulations, processes []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.RegulationIDs = regulations
			opts.ProcessIDs = processes
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.OrgID == "" {
					opts.OrgID = e.Config.Organization.ID
				}
				i, err := e.CreateIssue(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Domain, "domain", "", "domain")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.IssueType, "type", "", "issue type")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (defaults open)")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.DepartmentID, "department", "", "department id")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner user id")
	cmd.Flags().StringArrayVar(&regulations, "regulation", []string{}, "linked regulation id (repeatable)")
	cmd.Flags().StringArrayVar(&processes, "process", []string{}, "linked process id (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func issueShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.Repo.GetIssue(ctx, id)
				if err != nil {
					return err
				}
				if i.RegulationIDs, err = e.Repo.ListIssueRegulations(ctx, id); err != nil {
					return err
				}
				if i.ProcessIDs, err = e.Repo.ListIssueProcesses(ctx, id); err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	return cmd
}

func issueDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteIssue(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func issueExportCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export issues as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				orgID := e.Config.Organization.ID
				issues, err := e.Repo.ListIssues(ctx, repo.IssueFilters{OrgID: orgID})
				if err != nil {
					return err
				}
				depts, err := e.Repo.ListDepartments(ctx, orgID)
				if err != nil {
					return err
				}
				names := make(map[string]string, len(depts))
				for _, d := range depts {
					names[d.ID] = d.Name
				}
				csv := export.IssuesCSV(issues, func(id string) string { return names[id] })
				if outPath == "" {
					fmt.Print(csv)
					return nil
				}
				return os.WriteFile(outPath, []byte(csv), 0o644)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output file (stdout if omitted)")
	return cmd
}

func issueImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import issues from CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filePath)
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := export.ImportIssues(ctx, e, e.Config.Organization.ID, f, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to CSV file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func stakeholderCmd() *cobra.Command {
	sh := &cobra.Command{Use: "stakeholder", Short: "Manage stakeholders"}
	sh.AddCommand(stakeholderListCmd())
	sh.AddCommand(stakeholderCreateCmd())
	return sh
}

func stakeholderListCmd() *cobra.Command {
	var shType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stakeholders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListStakeholders(ctx, e.Config.Organization.ID, shType)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&shType, "type", "", "type filter (Internal, External, Third Party)")
	return cmd
}

func stakeholderCreateCmd() *cobra.Command {
	var opts engine.StakeholderOptions
	var needs []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a stakeholder",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			opts.Needs = needs
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.OrgID == "" {
					opts.OrgID = e.Config.Organization.ID
				}
				s, err := e.CreateStakeholder(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Type, "type", "", "type (defaults Internal)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status")
	cmd.Flags().StringVar(&opts.DepartmentID, "department", "", "department id")
	cmd.Flags().StringArrayVar(&needs, "need", []string{}, "need/expectation (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func riskCmd() *cobra.Command {
	risk := &cobra.Command{
		Use:   "risk",
		Short: "Manage risks",
		Long:  "Risks are scored likelihood x impact against the org's configured matrix and banded low/medium/high/critical.",
	}
	risk.AddCommand(riskListCmd())
	risk.AddCommand(riskCreateCmd())
	return risk
}

func riskListCmd() *cobra.Command {
	var f repo.RiskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List risks ordered by score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.OrgID == "" {
					f.OrgID = e.Config.Organization.ID
				}
				risks, err := e.Repo.ListRisks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(risks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "L", "I", "Score", "Band", "Status"})
				for _, rk := range risks {
					tw.AppendRow(table.Row{rk.ID, rk.Title, rk.Likelihood, rk.Impact, rk.Score, e.Config.Band(rk.Score), rk.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.CategoryID, "category", "", "category id filter")
	cmd.Flags().IntVar(&f.MinScore, "min-score", 0, "minimum score")
	return cmd
}

func riskCreateCmd() *cobra.Command {
	var opts engine.RiskOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a risk",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.OrgID == "" {
					opts.OrgID = e.Config.Organization.ID
				}
				rk, err := e.CreateRisk(ctx, opts)
				if err != nil {
					return err
				}
				if !viper.GetBool("json") {
					fmt.Printf("Score: %d (%s)\n", rk.Score, e.Config.Band(rk.Score))
				}
				return printJSONOrTable(rk)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.CategoryID, "category", "", "risk category id")
	cmd.Flags().StringVar(&opts.AssetID, "asset", "", "asset id")
	cmd.Flags().IntVar(&opts.Likelihood, "likelihood", 0, "likelihood score")
	cmd.Flags().IntVar(&opts.Impact, "impact", 0, "impact score")
	cmd.Flags().StringVar(&opts.ControlStrengthID, "control-strength", "", "control strength id")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (defaults identified)")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner user id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("likelihood")
	_ = cmd.MarkFlagRequired("impact")
	return cmd
}

func assetCmd() *cobra.Command {
	asset := &cobra.Command{Use: "asset", Short: "Manage assets"}
	asset.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAssets(ctx, e.Config.Organization.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return asset
}

func auditCmd() *cobra.Command {
	var status string
	audit := &cobra.Command{Use: "audit", Short: "Manage audits"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List audits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAudits(ctx, e.Config.Organization.ID, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")
	audit.AddCommand(list)
	return audit
}

func optionCmd() *cobra.Command {
	opt := &cobra.Command{Use: "option", Short: "Manage option lists"}
	var kind string
	list := &cobra.Command{
		Use:   "list",
		Short: "List option values for a kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListOptionValues(ctx, e.Config.Organization.ID, kind)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	list.Flags().StringVar(&kind, "kind", "", "option kind (domain, category, issue_type, need_expectation)")
	_ = list.MarkFlagRequired("kind")
	add := &cobra.Command{
		Use:   "add <value>",
		Short: "Add a custom option value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, created, err := e.AddOption(ctx, e.Config.Organization.ID, kind, value, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if !created && !viper.GetBool("json") {
					fmt.Println("already exists")
				}
				return printJSONOrTable(o)
			})
		},
	}
	add.Flags().StringVar(&kind, "kind", "", "option kind (domain, category, issue_type, need_expectation)")
	_ = add.MarkFlagRequired("kind")
	opt.AddCommand(list)
	opt.AddCommand(add)
	return opt
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show KPI dashboard stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.Dashboard(ctx, e.Config.Organization.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo data into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				orgID := e.Config.Organization.ID
				it, err := e.CreateDepartment(ctx, orgID, "IT", actor)
				if err != nil {
					return err
				}
				legal, err := e.CreateDepartment(ctx, orgID, "Legal", actor)
				if err != nil {
					return err
				}
				alice, err := e.CreateUser(ctx, engine.UserCreateOptions{
					OrgID: orgID, DepartmentID: it.ID, Name: "Alice Moreau", Email: "alice@example.com", Role: "CISO", ActorID: actor,
				})
				if err != nil {
					return err
				}
				if _, err := e.CreateUser(ctx, engine.UserCreateOptions{
					OrgID: orgID, DepartmentID: legal.ID, Name: "Bob Keller", Email: "bob@example.com", Role: "DPO", ActorID: actor,
				}); err != nil {
					return err
				}
				gdpr, err := e.CreateRegulation(ctx, orgID, "GDPR", "European Union", "General Data Protection Regulation", actor)
				if err != nil {
					return err
				}
				if _, err := e.CreateRegulation(ctx, orgID, "ISO 27001", "ISO", "Information security management", actor); err != nil {
					return err
				}
				onboarding, err := e.CreateProcess(ctx, orgID, "Customer onboarding", alice.ID, "KYC and account setup", actor)
				if err != nil {
					return err
				}
				if _, err := e.CreateIssue(ctx, engine.IssueOptions{
					OrgID: orgID, Title: "Data retention schedule missing", Domain: "Privacy",
					Category: "Compliance", IssueType: "Gap", DepartmentID: legal.ID,
					RegulationIDs: []string{gdpr.ID}, ProcessIDs: []string{onboarding.ID}, ActorID: actor,
				}); err != nil {
					return err
				}
				if _, err := e.CreateStakeholder(ctx, engine.StakeholderOptions{
					OrgID: orgID, Name: "Data subjects", Type: "External",
					Needs: []string{"Transparent processing", "Right to erasure honored"}, ActorID: actor,
				}); err != nil {
					return err
				}
				cat, err := e.CreateRiskCategory(ctx, orgID, "Information security", "Confidentiality, integrity, availability", actor)
				if err != nil {
					return err
				}
				asset, err := e.CreateAsset(ctx, engine.AssetOptions{
					OrgID: orgID, Name: "Customer database", AssetType: "Data",
					Classification: "Confidential", OwnerID: alice.ID, ActorID: actor,
				})
				if err != nil {
					return err
				}
				if _, err := e.CreateRisk(ctx, engine.RiskOptions{
					OrgID: orgID, Title: "Unauthorized access to customer data",
					CategoryID: cat.ID, AssetID: asset.ID, Likelihood: 3, Impact: 4,
					OwnerID: alice.ID, ActorID: actor,
				}); err != nil {
					return err
				}
				if _, err := e.CreateAudit(ctx, engine.AuditOptions{
					OrgID: orgID, Title: "Annual GDPR compliance review", AuditType: "internal",
					Scope: "Privacy processes", LeadID: alice.ID, ActorID: actor,
				}); err != nil {
					return err
				}
				fmt.Println("Seeded demo data for org", orgID)
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Audit trail",
		Long:  "The diary of everything that happened: profile edits, issue changes, risk scoring, imports, and more.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Organization.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyRevokeCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (raw key printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if userID == "" {
					userID = viper.GetString("actor-id")
				}
				raw := uuid.NewString() + uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    userID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				out := map[string]string{"id": key.ID, "user_id": key.UserID, "name": key.Name, "key": raw}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				type row struct {
					ID        string `json:"id"`
					UserID    string `json:"user_id"`
					Name      string `json:"name,omitempty"`
					CreatedAt string `json:"created_at"`
				}
				rows := make([]row, 0, len(keys))
				for _, k := range keys {
					rows = append(rows, row{ID: k.ID, UserID: k.UserID, Name: k.Name, CreatedAt: k.CreatedAt})
				}
				return printJSONOrTable(rows)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id filter")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, id)
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowActorHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveOrgAndConfig(cmd.Context(), viper.GetString("org"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("TRUSTOPS_JWT_SECRET"),
				AllowLegacyActorHeader: allowActorHeader,
			}
			if authCfg.JWTSecret == "" && !allowActorHeader {
				return fmt.Errorf("TRUSTOPS_JWT_SECRET is required for bearer auth (or pass --allow-actor-header for local use)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving TrustOps API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	cmd.Flags().BoolVar(&allowActorHeader, "allow-actor-header", false, "accept X-Actor-Id without a token (local use only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveOrgAndConfig(ctx, viper.GetString("org"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
