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

	"github.com/madaldho/designflow-app-sub000/internal/config"
	"github.com/madaldho/designflow-app-sub000/internal/db"
	"github.com/madaldho/designflow-app-sub000/internal/domain"
	"github.com/madaldho/designflow-app-sub000/internal/engine"
	"github.com/madaldho/designflow-app-sub000/internal/migrate"
	"github.com/madaldho/designflow-app-sub000/internal/repo"
	"github.com/madaldho/designflow-app-sub000/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "designflow",
	Short: "Designflow CLI",
	Long: `Designflow runs a design-production approval pipeline.
A requester opens a project, a designer uploads proofs, a reviewer judges
design quality, an approver authorizes printing, the print operator produces
it and the requester's order is handed over at pickup. Every step is gated by
role, recorded in the audit log and pushed to the people who need to act next.`,
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
	viper.SetEnvPrefix("DESIGNFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting user id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(proofCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(approvalCmd())
	rootCmd.AddCommand(printCmd())
	rootCmd.AddCommand(pickupCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(institutionCmd())
	rootCmd.AddCommand(notificationCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
}

func initCmd() *cobra.Command {
	var adminEmail string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default designflow.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(adminEmail)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@example.com", "bootstrap admin email")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			return migrate.Migrate(conn)
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("DESIGNFLOW_JWT_SECRET")}
			var webhooks []config.Webhook
			if cfg != nil {
				if authCfg.JWTSecret == "" {
					authCfg.JWTSecret = cfg.Auth.JWTSecret
				}
				if cfg.Auth.TokenTTL != "" {
					if ttl, err := time.ParseDuration(cfg.Auth.TokenTTL); err == nil {
						authCfg.TokenTTL = ttl
					}
				}
				webhooks = cfg.Webhooks
				if err := seedFromConfig(cmd.Context(), e, cfg); err != nil {
					return err
				}
				if addr == "" {
					addr = cfg.Addr()
				}
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("DESIGNFLOW_JWT_SECRET or auth.jwt_secret is required for bearer auth")
			}
			if addr == "" {
				addr = "127.0.0.1:8484"
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Webhooks: webhooks})
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
			fmt.Printf("Serving Designflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// seedFromConfig registers the bootstrap admin and any configured
// institutions. Both are idempotent across restarts.
func seedFromConfig(ctx context.Context, e engine.Engine, cfg *config.Config) error {
	admin, err := e.Bootstrap(ctx, cfg.Bootstrap.AdminName, cfg.Bootstrap.AdminEmail)
	if err != nil {
		return err
	}
	for _, seed := range cfg.Institutions {
		if seed.ID != "" {
			if _, err := e.Repo.GetInstitution(ctx, seed.ID); err == nil {
				continue
			} else if !errors.Is(err, repo.ErrNotFound) {
				return err
			}
		}
		_, err := e.CreateInstitution(ctx, engine.InstitutionCreateOptions{
			ActorID: admin.ID,
			ID:      seed.ID,
			Name:    seed.Name,
			Phone:   seed.Phone,
			Address: seed.Address,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectAssignCmd())
	prj.AddCommand(projectCloseCmd("archive", false))
	prj.AddCommand(projectCloseCmd("cancel", true))
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectStatsCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "project title")
	cmd.Flags().StringVar(&opts.MediaType, "media-type", "", "media type (banner, poster, ...)")
	cmd.Flags().StringVar(&opts.Size, "size", "", "physical size")
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 1, "print quantity")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline (RFC3339)")
	cmd.Flags().StringVar(&opts.InstitutionID, "institution", "", "institution id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("media-type")
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				f.Limit = 200
				projects, err := r.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Version", "Assignee", "Deadline"})
				for _, p := range projects {
					assignee := ""
					if p.AssigneeID != nil {
						assignee = *p.AssigneeID
					}
					deadline := ""
					if p.Deadline != nil {
						deadline = *p.Deadline
					}
					tw.AppendRow(table.Row{p.ID, p.Title, p.Status, p.Version, assignee, deadline})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.CreatorID, "creator", "", "creator filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.InstitutionID, "institution", "", "institution filter")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its pipeline history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				proofs, err := r.ListProofs(ctx, p.ID)
				if err != nil {
					return err
				}
				reviews, err := r.ListReviews(ctx, p.ID)
				if err != nil {
					return err
				}
				approvals, err := r.ListApprovals(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"project":   p,
					"proofs":    proofs,
					"reviews":   reviews,
					"approvals": approvals,
				})
			})
		},
	}
	return cmd
}

func projectAssignCmd() *cobra.Command {
	var assignee, reviewer, approver string
	cmd := &cobra.Command{
		Use:   "assign <project-id>",
		Short: "Assign designer, reviewer and approver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.RoleAssignOptions{
				ProjectID: args[0],
				ActorID:   viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("assignee") {
				opts.AssigneeID = &assignee
			}
			if cmd.Flags().Changed("reviewer") {
				opts.ReviewerID = &reviewer
			}
			if cmd.Flags().Changed("approver") {
				opts.ApproverID = &approver
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AssignRoles(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&assignee, "assignee", "", "designer user id (empty clears)")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer user id (empty clears)")
	cmd.Flags().StringVar(&approver, "approver", "", "approver user id (empty clears)")
	return cmd
}

func projectCloseCmd(use string, cancel bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <project-id>",
		Short: capitalize(use) + " a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CloseProject(ctx, viper.GetString("actor-id"), args[0], cancel)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteProject(ctx, viper.GetString("actor-id"), args[0])
			})
		},
	}
}

func projectStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Project counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				counts, err := r.CountProjectsByStatus(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(counts)
			})
		},
	}
}

func proofCmd() *cobra.Command {
	proof := &cobra.Command{Use: "proof", Short: "Design proofs"}
	proof.AddCommand(proofSubmitCmd())
	proof.AddCommand(proofListCmd())
	return proof
}

func proofSubmitCmd() *cobra.Command {
	var opts engine.ProofSubmitOptions
	cmd := &cobra.Command{
		Use:   "submit <project-id>",
		Short: "Upload a design proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SubmitProof(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.FileRef, "file", "", "file reference (path or URL)")
	cmd.Flags().BoolVar(&opts.IsFinal, "final", false, "mark as final proof")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes for the reviewer")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func proofListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List proofs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				proofs, err := r.ListProofs(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(proofs)
			})
		},
	}
}

func reviewCmd() *cobra.Command {
	rev := &cobra.Command{Use: "review", Short: "Design reviews"}
	var opts engine.ReviewSubmitOptions
	submit := &cobra.Command{
		Use:   "submit <project-id>",
		Short: "Submit a review decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.SubmitReview(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	submit.Flags().StringVar(&opts.ProofID, "proof", "", "proof id (defaults to latest)")
	submit.Flags().StringVar(&opts.Decision, "decision", "", "approved or changes_requested")
	submit.Flags().StringVar(&opts.Comment, "comment", "", "review comment")
	_ = submit.MarkFlagRequired("decision")
	rev.AddCommand(submit)
	return rev
}

func approvalCmd() *cobra.Command {
	app := &cobra.Command{Use: "approval", Short: "Print approvals"}
	var opts engine.ApprovalSubmitOptions
	submit := &cobra.Command{
		Use:   "submit <project-id>",
		Short: "Submit the print-readiness sign-off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.SubmitApproval(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	submit.Flags().StringVar(&opts.Decision, "decision", "", "approved or rejected")
	submit.Flags().StringVar(&opts.Comment, "comment", "", "approval comment")
	_ = submit.MarkFlagRequired("decision")
	app.AddCommand(submit)
	return app
}

func printCmd() *cobra.Command {
	pr := &cobra.Command{Use: "print", Short: "Print production"}
	pr.AddCommand(printStartCmd())
	pr.AddCommand(printUpdateCmd())
	pr.AddCommand(printListCmd())
	return pr
}

func printStartCmd() *cobra.Command {
	var opts engine.PrintStartOptions
	cmd := &cobra.Command{
		Use:   "start <project-id>",
		Short: "Start printing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				job, err := e.StartPrint(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(job)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "production notes")
	cmd.Flags().StringVar(&opts.EstimatedFinish, "eta", "", "estimated finish (RFC3339)")
	return cmd
}

func printUpdateCmd() *cobra.Command {
	var status, notes string
	cmd := &cobra.Command{
		Use:   "update <print-job-id>",
		Short: "Update a print job (completed moves the project to ready)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.PrintUpdateOptions{
				PrintJobID: args[0],
				ActorID:    viper.GetString("actor-id"),
				Status:     status,
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				job, err := e.UpdatePrintJob(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(job)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "queued, in_progress or completed")
	cmd.Flags().StringVar(&notes, "notes", "", "production notes")
	return cmd
}

func printListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <project-id>",
		Short: "List print jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				jobs, err := r.ListPrintJobs(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(jobs)
			})
		},
	}
}

func pickupCmd() *cobra.Command {
	var opts engine.PickupConfirmOptions
	cmd := &cobra.Command{
		Use:   "pickup <project-id>",
		Short: "Confirm physical pickup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				logEntry, err := e.ConfirmPickup(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(logEntry)
			})
		},
	}
	cmd.Flags().StringVar(&opts.TakerName, "taker", "", "name of the person taking the order")
	cmd.Flags().StringVar(&opts.TakerInstitution, "taker-institution", "", "taker's institution")
	cmd.Flags().StringVar(&opts.TakerPhone, "taker-phone", "", "taker's phone")
	_ = cmd.MarkFlagRequired("taker")
	return cmd
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	usr.AddCommand(userCreateCmd())
	usr.AddCommand(userListCmd())
	usr.AddCommand(userSetRoleCmd())
	usr.AddCommand(userSetActiveCmd("enable", true))
	usr.AddCommand(userSetActiveCmd("disable", false))
	usr.AddCommand(userBootstrapCmd())
	return usr
}

func userCreateCmd() *cobra.Command {
	var name, email, role, institution string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserCreateOptions{
					ActorID:       viper.GetString("actor-id"),
					Name:          name,
					Email:         email,
					Role:          domain.Role(role),
					InstitutionID: institution,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", "", "requester, designer_internal, designer_external, reviewer, approver or admin")
	cmd.Flags().StringVar(&institution, "institution", "", "institution id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Active"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, u.Active})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userSetRoleCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "set-role <user-id>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.ChangeUserRole(ctx, viper.GetString("actor-id"), args[0], domain.Role(role))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "new role")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func userSetActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: capitalize(use) + " a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.SetUserActive(ctx, viper.GetString("actor-id"), args[0], active)
			})
		},
	}
}

func userBootstrapCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Seed the first admin account without permission checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.Bootstrap(ctx, name, email)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "admin name")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func institutionCmd() *cobra.Command {
	inst := &cobra.Command{Use: "institution", Short: "Manage institutions"}
	var id, name, phone, address string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register an institution",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateInstitution(ctx, engine.InstitutionCreateOptions{
					ActorID: viper.GetString("actor-id"),
					ID:      id,
					Name:    name,
					Phone:   phone,
					Address: address,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	create.Flags().StringVar(&id, "id", "", "institution id (optional)")
	create.Flags().StringVar(&name, "name", "", "institution name")
	create.Flags().StringVar(&phone, "phone", "", "contact phone")
	create.Flags().StringVar(&address, "address", "", "address")
	_ = create.MarkFlagRequired("name")
	inst.AddCommand(create)
	inst.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List institutions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListInstitutions(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	return inst
}

func notificationCmd() *cobra.Command {
	notif := &cobra.Command{Use: "notification", Short: "Notifications"}
	var unread bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List my notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListNotifications(ctx, repo.NotificationFilters{
					UserID:     viper.GetString("actor-id"),
					UnreadOnly: unread,
					Limit:      100,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Title", "Read", "Created"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Type, n.Title, n.IsRead, n.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "unread only")
	notif.AddCommand(list)
	notif.AddCommand(&cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.MarkNotificationRead(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	})
	notif.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark all my notifications read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.MarkAllNotificationsRead(ctx, viper.GetString("actor-id"))
			})
		},
	})
	return notif
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Audit log",
	}
	var f repo.ActivityFilters
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.ListActivities(ctx, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	tail.Flags().IntVar(&f.Limit, "n", 20, "number of entries")
	tail.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	tail.Flags().StringVar(&f.UserID, "user", "", "user filter")
	tail.Flags().StringVar(&f.Type, "type", "", "type filter")
	log.AddCommand(tail)
	return log
}

func apikeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "API keys"}
	var keyName string
	keys.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List my API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	createKey := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				actorID := viper.GetString("actor-id")
				if actorID == "" {
					return fmt.Errorf("--actor-id is required")
				}
				if _, err := r.GetUser(ctx, actorID); err != nil {
					return err
				}
				raw := uuid.New().String() + uuid.New().String()
				key := domain.APIKey{
					ID:        uuid.New().String(),
					UserID:    actorID,
					Name:      keyName,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// the raw key is shown once; only its hash is stored
				return printJSONOrTable(map[string]string{
					"id":  key.ID,
					"key": raw,
				})
			})
		},
	}
	createKey.Flags().StringVar(&keyName, "name", "", "key label")
	keys.AddCommand(createKey)
	keys.AddCommand(&cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	})
	return keys
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
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

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
