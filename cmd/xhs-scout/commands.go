package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"xhs-scout/internal/analysis"
	"xhs-scout/internal/app"
	"xhs-scout/internal/browser"
	"xhs-scout/internal/config"
	"xhs-scout/internal/mcp"
	"xhs-scout/internal/observability"
	"xhs-scout/internal/report"
	"xhs-scout/internal/session"
)

// errReported - ошибка уже напечатана в stderr, cobra не должна печатать её снова.
var errReported = errors.New("operation failed")

type runtime struct {
	configPath string
	svc        *app.Service
	logger     *observability.Logger
}

func (r *runtime) open(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(r.configPath)
	if err != nil {
		return err
	}
	sel, err := config.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return err
	}
	dict, err := analysis.LoadDictionary(cfg.DictionaryFile)
	if err != nil {
		return err
	}

	r.logger = observability.NewLogger(
		cfg.Observability.LogPath,
		cfg.Observability.LogLevel,
		cfg.Observability.LogMaxSizeMB,
		cfg.Observability.LogMaxBackups,
	)
	repo, err := app.OpenRepository(cfg, r.logger)
	if err != nil {
		r.logger.Close()
		r.logger = nil
		return err
	}

	r.svc = app.NewService(app.Deps{
		Config:     cfg,
		Selectors:  sel,
		Dictionary: dict,
		Driver:     browser.NewRodDriver(cfg),
		Logger:     r.logger,
		Metrics:    observability.NewMetrics(),
		Repository: repo,
	})
	r.svc.Session().SetProgressFunc(func(p session.Progress) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Waiting for login: %s left\n", p.Remaining.Round(time.Second))
	})
	r.logger.Info("Service started", "version", Version, "command", cmd.Name())
	return nil
}

func (r *runtime) close() error {
	if r.svc != nil {
		if err := r.svc.Close(); err != nil {
			r.logger.Error("Shutdown finished with errors", "error", err.Error())
		}
	}
	if r.logger != nil {
		r.logger.Info("Service stopped")
		return r.logger.Close()
	}
	return nil
}

// emit печатает результат в stdout или объяснение ошибки в stderr.
func emit(cmd *cobra.Command, text string, err error) error {
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), report.Error(err))
		return errReported
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

// execute запускает команду и всегда закрывает runtime: cobra пропускает
// PostRun, если RunE вернула ошибку.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, rt := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := rt.close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func newRootCmd() (*cobra.Command, *runtime) {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "xhs-scout",
		Short:         "xhs-scout extracts, searches and comments on xiaohongshu notes. Without a subcommand it serves MCP over stdio.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.open(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, rt)
		},
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "path to config.yaml (defaults are used when empty)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve MCP tools over stdio.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd, rt)
			},
		},
		&cobra.Command{
			Use:   "login",
			Short: "Open the browser and wait for a manual login.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				res, err := rt.svc.Login(cmd.Context())
				return emit(cmd, report.Login(res), err)
			},
		},
		&cobra.Command{
			Use:   "reset-login",
			Short: "Close the browser session; the saved profile is kept.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return emit(cmd, report.ResetLogin(), rt.svc.ResetLogin(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the session state.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return emit(cmd, report.Status(rt.svc.Status(cmd.Context())), nil)
			},
		},
		searchCmd(rt),
		smartSearchCmd(rt),
		deepSearchCmd(rt),
		&cobra.Command{
			Use:   "note <url>",
			Short: "Extract the content of a note.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				note, err := rt.svc.GetNoteContent(cmd.Context(), args[0])
				if err != nil {
					return emit(cmd, "", err)
				}
				return emit(cmd, report.Note(note), nil)
			},
		},
		&cobra.Command{
			Use:   "analyze <url>",
			Short: "Extract a note and show its domains and keywords.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := rt.svc.AnalyzeNote(cmd.Context(), args[0])
				if err != nil {
					return emit(cmd, "", err)
				}
				return emit(cmd, report.Analysis(a), nil)
			},
		},
		&cobra.Command{
			Use:   "comments <url>",
			Short: "Read the comments of a note.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				comments, err := rt.svc.GetNoteComments(cmd.Context(), args[0])
				return emit(cmd, report.Comments(args[0], comments), err)
			},
		},
		smartCommentCmd(rt),
		&cobra.Command{
			Use:   "post-comment <url> <text...>",
			Short: "Post a comment to a note and confirm the submission.",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				text := strings.Join(args[1:], " ")
				err := rt.svc.PostComment(cmd.Context(), args[0], text)
				return emit(cmd, report.Posted(args[0], text), err)
			},
		},
	)
	return root, rt
}

func serve(cmd *cobra.Command, rt *runtime) error {
	rt.logger.Info("Serving MCP over stdio", "tools", len(mcp.AllToolNames()))
	return mcp.Run(rt.svc, Version)
}

func searchCmd(rt *runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <keyword...>",
		Short: "Search notes by keyword in page order.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt.svc.SearchNotes(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return emit(cmd, "", err)
			}
			return emit(cmd, report.Search(r), nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (config default when 0)")
	return cmd
}

func smartSearchCmd(rt *runtime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "smart-search <task...>",
		Short: "Plan queries from a task, run them in rounds and rank the results.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rt.svc.SmartSearchNotes(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return emit(cmd, "", err)
			}
			return emit(cmd, report.SmartSearch(r), nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of ranked results (config default when 0)")
	return cmd
}

func deepSearchCmd(rt *runtime) *cobra.Command {
	var (
		limit     int
		noAnalyze bool
	)
	cmd := &cobra.Command{
		Use:   "deep-search <task...>",
		Short: "Smart search plus extraction and analysis of every result.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := rt.svc.DeepSearchAndAnalyze(cmd.Context(), strings.Join(args, " "), !noAnalyze, limit)
			if err != nil {
				return emit(cmd, "", err)
			}
			return emit(cmd, report.Deep(d), nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (config default when 0)")
	cmd.Flags().BoolVar(&noAnalyze, "no-analyze", false, "skip per-note extraction")
	return cmd
}

func smartCommentCmd(rt *runtime) *cobra.Command {
	var commentType string
	cmd := &cobra.Command{
		Use:   "smart-comment <url>",
		Short: "Prepare comment suggestions for a note. Nothing is posted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := rt.svc.PostSmartComment(cmd.Context(), args[0], commentType)
			if err != nil {
				return emit(cmd, "", err)
			}
			return emit(cmd, report.SmartComment(sc), nil)
		},
	}
	cmd.Flags().StringVar(&commentType, "type", string(analysis.CommentPraise), "comment type: 点赞, 引流, 提问 or 分享经验")
	return cmd
}
