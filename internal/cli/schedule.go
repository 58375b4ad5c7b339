package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hray3182/DeskPal/internal/models"
	"github.com/hray3182/DeskPal/internal/rrule"
	"github.com/hray3182/DeskPal/internal/service"
	"github.com/hray3182/DeskPal/internal/timeexpr"
	"github.com/hray3182/DeskPal/internal/tools"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		notifyExternal bool
		repeat         string
	)
	cmd := &cobra.Command{
		Use:   "add <time> <task...>",
		Short: "Add a schedule",
		Long: `Add a schedule. <time> is a relative phrase ("10分钟后", "2h"), a clock
time ("15:30", today or tomorrow if already past) or a quoted full datetime
("2030-05-01 09:00:00").`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args[1:], " ")
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				rec, err := a.svc.Add(cmd.Context(), service.AddRequest{
					Time:           args[0],
					Task:           task,
					NotifyExternal: notifyExternal || tools.WantsExternalNotify(task, ""),
					Repeat:         models.ParseRepeatType(repeat),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已添加日程 #%d：%s %s%s\n", rec.ID, rec.Datetime, rec.Task, suffix(rec))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&notifyExternal, "notify", false, "Also send an external push when due")
	cmd.Flags().StringVar(&repeat, "repeat", "once", "Repeat: once, daily, weekly, monthly, yearly")
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var oldTime, newTask, newTime string
	cmd := &cobra.Command{
		Use:   "update <old-task>",
		Short: "Change the task text or time of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if newTask == "" && newTime == "" {
				return errors.New("nothing to change: pass --task and/or --time")
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				rec, err := a.svc.Update(cmd.Context(), args[0], oldTime, newTask, newTime)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已修改日程 #%d：%s %s\n", rec.ID, rec.Datetime, rec.Task)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&oldTime, "at", "", "Current time of the schedule, to pick among several matches")
	cmd.Flags().StringVar(&newTask, "task", "", "New task text")
	cmd.Flags().StringVar(&newTime, "time", "", "New time expression")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "delete [task]",
		Short: "Delete one schedule by task text or by today's HH:MM",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := ""
			if len(args) == 1 {
				task = args[0]
				// A bare clock time as the only argument selects by time.
				if _, ok := timeexpr.Clock(task); ok && at == "" {
					task, at = "", task
				}
			}
			if task == "" && at == "" {
				return errors.New("pass a task or --at HH:MM")
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				rec, err := a.svc.Delete(cmd.Context(), task, at)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已删除日程 #%d：%s %s\n", rec.ID, rec.Datetime, rec.Task)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Clock time (HH:MM) of today's schedule to delete")
	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete every schedule without --yes")
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				n, err := a.svc.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "已删除所有日程，共删除 %d 个日程\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func newFindCmd(opts *rootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "find [keyword]",
		Short: "Find pending schedules by task substring and exact datetime",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := ""
			if len(args) == 1 {
				keyword = args[0]
			}
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				list, err := a.svc.Find(cmd.Context(), keyword, at)
				if err != nil {
					return err
				}
				printList(cmd, list, "未找到匹配的日程")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Exact datetime (YYYY-MM-DD HH:MM[:SS])")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		day     string
		future  bool
		history bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending schedules, or past ones with --history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, cmd.ErrOrStderr(), func(a *app) error {
				var (
					list []*models.Schedule
					err  error
				)
				if history {
					list, err = a.svc.History(cmd.Context(), limit)
				} else {
					list, err = a.svc.List(cmd.Context(), service.ListOptions{Day: day, Future: future, Limit: limit})
				}
				if err != nil {
					return err
				}
				printList(cmd, list, "暂无日程")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Only schedules on this day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&future, "future", false, "Only schedules not yet due")
	cmd.Flags().BoolVar(&history, "history", false, "Past schedules, most recent first")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows (history defaults to 20)")
	return cmd
}

func printList(cmd *cobra.Command, list []*models.Schedule, empty string) {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	fmt.Fprint(out, tools.FormatList(list))
}

func suffix(rec *models.Schedule) string {
	var sb strings.Builder
	if rec.RepeatType.IsRecurring() {
		sb.WriteString("（" + rrule.HumanReadableChinese(rec.RepeatType) + "重复）")
	}
	if rec.NotifyExternal {
		sb.WriteString("（将发送外部通知）")
	}
	return sb.String()
}
