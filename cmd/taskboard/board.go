package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/config"
	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/logger"
	"github.com/mtlprog/taskboard/internal/optimistic"
	"github.com/mtlprog/taskboard/internal/permission"
	"github.com/mtlprog/taskboard/internal/view"
	"github.com/urfave/cli/v2"
)

const dateLayout = "2006-01-02"

func boardCommand() *cli.Command {
	return &cli.Command{
		Name:  "board",
		Usage: "Work with the task board as a user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   config.DefaultAPIURL,
				Usage:   "Task service base URL",
				EnvVars: []string{"TASKBOARD_API_URL"},
			},
			&cli.StringFlag{
				Name:    "script-url",
				Usage:   "Use a legacy script endpoint instead of the task service",
				EnvVars: []string{"TASKBOARD_SCRIPT_URL"},
			},
			&cli.BoolFlag{
				Name:    "blind",
				Usage:   "Do not read script responses to writes",
				EnvVars: []string{"TASKBOARD_SCRIPT_BLIND"},
			},
			&cli.StringFlag{
				Name:     "user-id",
				Usage:    "Acting user id",
				EnvVars:  []string{"TASKBOARD_USER_ID"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "user-name",
				Usage:   "Acting user display name",
				EnvVars: []string{"TASKBOARD_USER_NAME"},
			},
			&cli.StringFlag{
				Name:    "role",
				Value:   string(domain.RoleMember),
				Usage:   "Acting user role (admin, manager, marketing_lead, member)",
				EnvVars: []string{"TASKBOARD_ROLE"},
			},
			&cli.StringFlag{
				Name:    "permission-file",
				Value:   config.DefaultPermissionFile,
				Usage:   "JSON permission table (default: built-in)",
				EnvVars: []string{"TASKBOARD_PERMISSION_FILE"},
			},
			&cli.StringFlag{
				Name:    "local-store",
				Value:   config.DefaultLocalStorePath,
				Usage:   "SQLite file for the offline copy (empty: memory only)",
				EnvVars: []string{"TASKBOARD_LOCAL_STORE"},
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Value:   config.DefaultCacheTTL,
				Usage:   "How long a fetched list is reused",
				EnvVars: []string{"TASKBOARD_CACHE_TTL"},
			},
			&cli.DurationFlag{
				Name:    "http-timeout",
				Value:   config.DefaultHTTPTimeout,
				Usage:   "Timeout for each request to the task service",
				EnvVars: []string{"TASKBOARD_HTTP_TIMEOUT"},
			},
			&cli.DurationFlag{
				Name:    "debounce",
				Value:   config.DefaultDebounce,
				Usage:   "Quiet window before a text edit is saved",
				EnvVars: []string{"TASKBOARD_DEBOUNCE"},
			},
			&cli.BoolFlag{
				Name:    "revert-on-failure",
				Usage:   "Undo optimistic edits the task service rejects",
				EnvVars: []string{"TASKBOARD_REVERT_ON_FAILURE"},
			},
		},
		Before: func(c *cli.Context) error {
			// Board output goes to stdout; keep logs out of it.
			logger.SetupWith(os.Stderr, logger.FormatText, logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show the tasks you may see",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Match title or description"},
					&cli.StringFlag{Name: "department", Usage: "Only this department"},
					&cli.StringFlag{Name: "status", Usage: "Only this status"},
					&cli.StringFlag{Name: "priority", Usage: "Only this priority"},
					&cli.BoolFlag{Name: "refresh", Usage: "Bypass the cache"},
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Redraw on every change until interrupted"},
				},
				Action: runBoardList,
			},
			{
				Name:      "add",
				Usage:     "Create a task",
				ArgsUsage: "TITLE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Usage: "Task description"},
					&cli.StringFlag{Name: "status", Usage: "Initial status"},
					&cli.StringFlag{Name: "priority", Usage: "Initial priority"},
					&cli.StringFlag{Name: "department", Usage: "Owning department (empty: public)"},
					&cli.StringFlag{Name: "start", Usage: "Start date (YYYY-MM-DD)"},
					&cli.StringFlag{Name: "due", Usage: "Due date (YYYY-MM-DD)"},
				},
				Action: runBoardAdd,
			},
			{
				Name:      "set",
				Usage:     "Change task fields",
				ArgsUsage: "TASK_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "New title"},
					&cli.StringFlag{Name: "description", Usage: "New description"},
					&cli.StringFlag{Name: "status", Usage: "New status"},
					&cli.StringFlag{Name: "priority", Usage: "New priority"},
					&cli.StringFlag{Name: "department", Usage: "New department (\"-\" for public)"},
					&cli.StringFlag{Name: "start", Usage: "Start date (YYYY-MM-DD, \"-\" clears)"},
					&cli.StringFlag{Name: "due", Usage: "Due date (YYYY-MM-DD, \"-\" clears)"},
				},
				Action: runBoardSet,
			},
			{
				Name:      "open",
				Usage:     "Show one task and mark it read",
				ArgsUsage: "TASK_ID",
				Action:    runBoardOpen,
			},
			{
				Name:      "delete",
				Usage:     "Delete a task",
				ArgsUsage: "TASK_ID",
				Action:    runBoardDelete,
			},
			{
				Name:      "like",
				Usage:     "Like a task",
				ArgsUsage: "TASK_ID",
				Action:    func(c *cli.Context) error { return runBoardLike(c, true) },
			},
			{
				Name:      "unlike",
				Usage:     "Withdraw a like",
				ArgsUsage: "TASK_ID",
				Action:    func(c *cli.Context) error { return runBoardLike(c, false) },
			},
			{
				Name:      "comment",
				Usage:     "Comment on a task",
				ArgsUsage: "TASK_ID TEXT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "reply-to", Usage: "Parent comment id"},
				},
				Action: runBoardComment,
			},
			{
				Name:      "subtask",
				Usage:     "Add a checklist item",
				ArgsUsage: "TASK_ID TITLE",
				Action:    runBoardSubtask,
			},
			{
				Name:      "toggle",
				Usage:     "Complete or reopen a checklist item",
				ArgsUsage: "TASK_ID SUBTASK_ID",
				Action:    runBoardToggle,
			},
			{
				Name:      "attach",
				Usage:     "Upload a file to a task",
				ArgsUsage: "TASK_ID FILE",
				Action:    runBoardAttach,
			},
			{
				Name:   "sync",
				Usage:  "Push tasks created while offline",
				Action: runBoardSync,
			},
		},
	}
}

// session is one CLI invocation's view of the board.
type session struct {
	client *client.Client
	table  *permission.Table
	user   domain.User
	store  *client.SQLiteStore
	out    io.Writer
}

func openSession(c *cli.Context) (*session, error) {
	httpClient := &http.Client{Timeout: c.Duration("http-timeout")}

	var transport client.Transport
	if scriptURL := c.String("script-url"); scriptURL != "" {
		transport = client.NewScriptTransport(scriptURL, httpClient, c.Bool("blind"))
	} else {
		transport = client.NewRESTTransport(c.String("api-url"), httpClient)
	}

	table := permission.Default()
	if path := c.String("permission-file"); path != "" {
		var err error
		if table, err = permission.LoadFile(path); err != nil {
			return nil, err
		}
	}

	s := &session{table: table, out: c.App.Writer}

	var local client.LocalStore
	if path := c.String("local-store"); path != "" {
		store, err := client.OpenSQLiteStore(c.Context, path)
		if err != nil {
			return nil, err
		}
		s.store = store
		local = store
	}

	s.user = domain.User{
		ID:   c.String("user-id"),
		Name: c.String("user-name"),
		Role: domain.Role(c.String("role")),
	}
	if s.user.Name == "" {
		s.user.Name = s.user.ID
	}

	s.client = client.New(transport, local, client.Options{CacheTTL: c.Duration("cache-ttl")})
	s.client.SetUser(s.user)
	return s, nil
}

func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("failed to close local store", "error", err)
		}
	}
}

func (s *session) coordinator(c *cli.Context) *optimistic.Coordinator {
	policy := optimistic.RetainLocal
	if c.Bool("revert-on-failure") {
		policy = optimistic.Revert
	}
	return optimistic.New(s.client, optimistic.Options{Policy: policy, Debounce: c.Duration("debounce")})
}

func runBoardList(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	filters, err := parseViewFilters(c)
	if err != nil {
		return err
	}
	access := s.table.Allowed(s.user)

	draw := func(snap client.Snapshot) {
		if snap.Err != nil {
			slog.Warn("task service unreachable, showing saved tasks", "source", snap.Source, "error", snap.Err)
		}
		printBoard(s.out, view.Derive(snap.Tasks, access, filters, time.Now()), snap.Source)
	}

	if c.Bool("refresh") {
		draw(s.client.Refresh(c.Context))
	} else {
		draw(s.client.ListTasks(c.Context))
	}

	if !c.Bool("watch") {
		return nil
	}

	feed, err := changeFeedURL(c.String("api-url"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = client.WatchAndRefresh(ctx, s.client, feed, draw)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseViewFilters(c *cli.Context) (view.Filters, error) {
	filters := view.Filters{
		Search:     c.String("search"),
		Department: domain.Department(c.String("department")),
		Status:     domain.TaskStatus(c.String("status")),
		Priority:   domain.TaskPriority(c.String("priority")),
	}
	if filters.Department != "" && !filters.Department.IsValid() {
		return filters, fmt.Errorf("%w: %s", domain.ErrInvalidDepartment, filters.Department)
	}
	if filters.Status != "" && !filters.Status.IsValid() {
		return filters, fmt.Errorf("%w: %s", domain.ErrInvalidStatus, filters.Status)
	}
	if filters.Priority != "" && !filters.Priority.IsValid() {
		return filters, fmt.Errorf("%w: %s", domain.ErrInvalidPriority, filters.Priority)
	}
	return filters, nil
}

func runBoardAdd(c *cli.Context) error {
	title := strings.Join(c.Args().Slice(), " ")

	draft := domain.TaskDraft{
		Title:       title,
		Description: c.String("description"),
		Status:      domain.TaskStatus(c.String("status")),
		Priority:    domain.TaskPriority(c.String("priority")),
		Department:  domain.Department(c.String("department")),
	}
	var err error
	if draft.StartDate, err = parseDate(c.String("start")); err != nil {
		return err
	}
	if draft.DueDate, err = parseDate(c.String("due")); err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	task, err := s.client.CreateTask(c.Context, draft)
	if errors.Is(err, client.ErrNotSynced) {
		fmt.Fprintf(s.out, "saved locally as %s; run \"board sync\" when the service is back\n", task.ID)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(s.out, task.ID)
	return nil
}

func runBoardSet(c *cli.Context) error {
	id, err := taskArg(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	coord := s.coordinator(c)
	if err := loadTasks(c.Context, coord); err != nil {
		return err
	}

	var errs []error
	if c.IsSet("status") {
		_, err := coord.SetStatus(c.Context, id, domain.TaskStatus(c.String("status")))
		errs = append(errs, err)
	}
	if c.IsSet("priority") {
		_, err := coord.SetPriority(c.Context, id, domain.TaskPriority(c.String("priority")))
		errs = append(errs, err)
	}
	if c.IsSet("department") {
		department := c.String("department")
		if department == "-" {
			department = ""
		}
		_, err := coord.SetDepartment(c.Context, id, domain.Department(department))
		errs = append(errs, err)
	}
	if c.IsSet("start") || c.IsSet("due") {
		start, err := optionalDate(c, "start")
		if err != nil {
			return err
		}
		due, err := optionalDate(c, "due")
		if err != nil {
			return err
		}
		_, err = coord.SetDates(c.Context, id, start, due)
		errs = append(errs, err)
	}
	if c.IsSet("title") {
		errs = append(errs, coord.SetTitle(id, c.String("title")))
	}
	if c.IsSet("description") {
		errs = append(errs, coord.SetDescription(id, c.String("description")))
	}

	// Close sends debounced text edits now and waits for every remote call.
	coord.Close()

	for _, e := range coord.Errors() {
		errs = append(errs, fmt.Errorf("%s %s: %w", e.TaskID, strings.Join(e.Fields, ","), e.Err))
	}
	return errors.Join(errs...)
}

func optionalDate(c *cli.Context, name string) (domain.OptionalDate, error) {
	if !c.IsSet(name) {
		return domain.OptionalDate{}, nil
	}
	if c.String(name) == "-" {
		return domain.ClearDate(), nil
	}
	t, err := parseDate(c.String(name))
	if err != nil || t == nil {
		return domain.OptionalDate{}, err
	}
	return domain.SetDate(*t), nil
}

func runBoardOpen(c *cli.Context) error {
	id, err := taskArg(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	coord := s.coordinator(c)
	if err := loadTasks(c.Context, coord); err != nil {
		return err
	}
	defer coord.Close()

	if err := checkVisible(coord.Tasks(), id, s.table.Allowed(s.user)); err != nil {
		return err
	}
	task, err := coord.Open(c.Context, id)
	if err != nil {
		return err
	}

	printTask(s.out, task)
	return nil
}

// loadTasks fills coord from the store. An unreachable service only stops the command
// when there is no saved copy to work on.
func loadTasks(ctx context.Context, coord *optimistic.Coordinator) error {
	err := coord.Load(ctx)
	if err == nil {
		return nil
	}
	if len(coord.Tasks()) == 0 {
		return err
	}
	slog.Warn("task service unreachable, working on saved tasks", "error", err)
	return nil
}

// checkVisible reports tasks outside the user's departments as not found.
func checkVisible(tasks []domain.Task, id string, access domain.Access) error {
	i := slices.IndexFunc(tasks, func(t domain.Task) bool { return t.ID == id })
	if i < 0 || !tasks[i].IsVisibleTo(access) {
		return fmt.Errorf("task %s: %w", id, domain.ErrTaskNotFound)
	}
	return nil
}

func runBoardDelete(c *cli.Context) error {
	id, err := taskArg(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.client.DeleteTask(c.Context, id)
}

func runBoardLike(c *cli.Context, like bool) error {
	id, err := taskArg(c)
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	if like {
		_, err = s.client.LikeTask(c.Context, id, s.user.ID)
	} else {
		_, err = s.client.UnlikeTask(c.Context, id, s.user.ID)
	}
	return err
}

func runBoardComment(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("usage: board comment TASK_ID TEXT")
	}
	taskID := c.Args().First()
	content := strings.Join(c.Args().Tail(), " ")

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	draft := domain.CommentDraft{
		Content: content,
		Author:  domain.Author{ID: s.user.ID, Name: s.user.Name, Role: s.user.Role},
	}
	if parent := c.String("reply-to"); parent != "" {
		draft.ParentID = &parent
	}

	_, err = s.client.AddComment(c.Context, taskID, draft)
	return err
}

func runBoardSubtask(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("usage: board subtask TASK_ID TITLE")
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.client.AddSubtask(c.Context, c.Args().First(), strings.Join(c.Args().Tail(), " "))
	return err
}

func runBoardToggle(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: board toggle TASK_ID SUBTASK_ID")
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = s.client.ToggleSubtask(c.Context, c.Args().Get(0), c.Args().Get(1))
	return err
}

func runBoardAttach(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: board attach TASK_ID FILE")
	}
	path := c.Args().Get(1)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attachment: %w", err)
	}
	defer f.Close()

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	att, err := s.client.UploadAttachment(c.Context, c.Args().Get(0), client.Upload{
		FileName:   fileName(path),
		UploadedBy: s.user.ID,
		Body:       f,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "%s\t%s\t%d bytes\n", att.ID, att.FileName, att.Size)
	return nil
}

func runBoardSync(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.client.SyncPending(c.Context)
	fmt.Fprintf(s.out, "%d task(s) synced\n", n)
	return err
}

func taskArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", fmt.Errorf("usage: board %s TASK_ID", c.Command.Name)
	}
	return id, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return &t, nil
}

func fileName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// changeFeedURL derives the websocket endpoint from the API base URL.
func changeFeedURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/api/v1") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

func printBoard(w io.Writer, v view.View, source client.Source) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "%d task(s) from %s\n", len(v.Visible), source)
	section := func(name string, tasks []domain.Task) {
		if len(tasks) == 0 {
			return
		}
		fmt.Fprintf(tw, "\n%s\n", name)
		fmt.Fprintln(tw, "ID\tPRIORITY\tSTATUS\tDEPARTMENT\tDUE\tTITLE")
		for _, t := range tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s%s\n",
				t.ID, t.Priority, t.Status, departmentLabel(t.Department), dateLabel(t.DueDate), t.Title, taskMarks(t))
		}
	}
	section("New", v.New)
	section("Older", v.Older)

	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "By status:\t%s\n", countsLabel(v.Counts.Status, domain.TaskStatuses))
	fmt.Fprintf(tw, "By priority:\t%s\n", countsLabel(v.Counts.Priority, domain.TaskPriorities))
	fmt.Fprintf(tw, "By department:\t%s\n", countsLabel(v.Counts.Department, domain.Departments))
}

func printTask(w io.Writer, t domain.Task) {
	fmt.Fprintf(w, "%s%s\n", t.Title, taskMarks(t))
	fmt.Fprintf(w, "%s | %s | %s | due %s | %d like(s)\n",
		t.Status, t.Priority, departmentLabel(t.Department), dateLabel(t.DueDate), t.Likes)
	if t.Description != "" {
		fmt.Fprintf(w, "\n%s\n", t.Description)
	}
	if len(t.Subtasks) > 0 {
		fmt.Fprintln(w)
		for _, st := range t.Subtasks {
			box := "[ ]"
			if st.Completed {
				box = "[x]"
			}
			fmt.Fprintf(w, "%s %s  (%s)\n", box, st.Title, st.ID)
		}
	}
	if len(t.Comments) > 0 {
		fmt.Fprintln(w)
		for _, cm := range t.Comments {
			indent := ""
			if cm.IsReply() {
				indent = "    "
			}
			edited := ""
			if cm.IsEdited {
				edited = " (edited)"
			}
			fmt.Fprintf(w, "%s%s: %s%s\n", indent, cm.Author.Name, cm.Content, edited)
		}
	}
}

func taskMarks(t domain.Task) string {
	var marks []string
	if !t.IsRead {
		marks = append(marks, "unread")
	}
	if t.PendingSync {
		marks = append(marks, "not synced")
	}
	if len(marks) == 0 {
		return ""
	}
	return " (" + strings.Join(marks, ", ") + ")"
}

func departmentLabel(d domain.Department) string {
	if d == "" {
		return "-"
	}
	return string(d)
}

func dateLabel(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(dateLayout)
}

func countsLabel[K ~string](counts map[K]int, order []K) string {
	parts := make([]string, 0, len(order))
	for _, k := range order {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
