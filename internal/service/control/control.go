package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oshokin/alarm-clock/internal/config"
	domain "github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/common"
)

// AlarmClient is the subset of common.Client the commands use.
type AlarmClient interface {
	List(ctx context.Context) ([]*domain.Alarm, bool, error)
	Get(ctx context.Context, id string) (*domain.Alarm, error)
	Create(ctx context.Context, defaults domain.Defaults) (*domain.Alarm, error)
	Commit(ctx context.Context, a *domain.Alarm) (string, error)
	Delete(ctx context.Context, id string) (string, error)
	Toggle(ctx context.Context, id string) (*domain.Alarm, error)
	Status(ctx context.Context) (*common.Status, error)
}

// Options configures how alarmctl reaches alarmd.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string
}

// Patch holds the alarm fields given on the command line. Nil fields are left unchanged.
type Patch struct {
	Time    *string
	Days    *string
	Name    *string
	Color   *string
	Sound   *string
	URL     *string
	Enabled *bool
}

// errNoChanges is returned by Update when the patch is empty.
var errNoChanges = errors.New("nothing to update")

// Controller runs alarmctl commands against an AlarmClient.
type Controller struct {
	// client talks to alarmd.
	client AlarmClient
	// out receives the command output.
	out io.Writer
	// now returns the current time for next-occurrence rendering.
	now func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a Controller writing to out.
func New(client AlarmClient, out io.Writer, opts ...Option) *Controller {
	c := &Controller{
		client: client,
		out:    out,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Connect loads settings, identifies the caller and dials alarmd. The returned
// function closes the connection.
func Connect(ctx context.Context, opts *Options) (*common.Client, func() error, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	if err = logger.Configure(cfg.LogLevel); err != nil {
		return nil, nil, err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return nil, nil, err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return nil, nil, err
	}

	logger.DebugKV(ctx, "Connected to alarm daemon", "server_address", serverAddress, "actor", actor.String())

	return client, client.Close, nil
}

// List prints every alarm with its color swatch and next occurrence.
func (c *Controller) List(ctx context.Context) error {
	list, stale, err := c.client.List(ctx)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		c.printf("No alarms.\n")
	}

	now := c.now()
	for _, a := range list {
		c.printf("%s\n", formatAlarm(a, now))
	}

	if stale {
		c.printf("%s\n", warning("Warning: the latest changes are not saved to disk yet."))
	}

	return nil
}

// Add creates an alarm from the patch and commits it.
func (c *Controller) Add(ctx context.Context, patch Patch) error {
	defaults, err := patch.defaults()
	if err != nil {
		return err
	}

	a, err := c.client.Create(ctx, defaults)
	if err != nil {
		return err
	}

	if err = patch.Apply(a); err != nil {
		return err
	}

	result, err := c.client.Commit(ctx, a)
	if err != nil {
		return err
	}

	c.printf("%s %s\n", result, a.ID)
	c.printf("%s\n", formatAlarm(a, c.now()))

	return nil
}

// Update applies the patch to the alarm with the given ID.
func (c *Controller) Update(ctx context.Context, id string, patch Patch) error {
	if patch.empty() {
		return errNoChanges
	}

	a, err := c.client.Get(ctx, id)
	if err != nil {
		return err
	}

	if err = patch.Apply(a); err != nil {
		return err
	}

	result, err := c.client.Commit(ctx, a)
	if err != nil {
		return err
	}

	c.printf("%s %s\n", result, a.ID)
	c.printf("%s\n", formatAlarm(a, c.now()))

	return nil
}

// Delete removes the alarm with the given ID.
func (c *Controller) Delete(ctx context.Context, id string) error {
	result, err := c.client.Delete(ctx, id)
	if err != nil {
		return err
	}

	c.printf("%s %s\n", result, id)

	return nil
}

// Toggle flips the alarm's enabled flag.
func (c *Controller) Toggle(ctx context.Context, id string) error {
	a, err := c.client.Toggle(ctx, id)
	if err != nil {
		return err
	}

	c.printf("%s\n", formatAlarm(a, c.now()))

	return nil
}

// Next prints the upcoming occurrences of enabled alarms in chronological
// order, or of the alarm with the given ID when id is not empty.
func (c *Controller) Next(ctx context.Context, id string) error {
	var (
		list []*domain.Alarm
		err  error
	)

	if id != "" {
		var a *domain.Alarm

		a, err = c.client.Get(ctx, id)
		list = []*domain.Alarm{a}
	} else {
		list, _, err = c.client.List(ctx)
	}

	if err != nil {
		return err
	}

	now := c.now()
	upcoming := upcomingOccurrences(list, now, id != "")

	if len(upcoming) == 0 {
		c.printf("Nothing scheduled.\n")

		return nil
	}

	for _, o := range upcoming {
		c.printf("%s  %-9s %s (%s)\n",
			o.at.Format(occurrenceLayout),
			"in "+formatDuration(o.at.Sub(now)),
			o.alarm.DisplayName(),
			o.alarm.ID,
		)
	}

	// A single alarm also gets its next few rings.
	if id != "" {
		following := followingOccurrences(upcoming[0].alarm, upcoming[0].at, followingCount)

		formatted := make([]string, 0, len(following))
		for _, at := range following {
			formatted = append(formatted, at.Format(occurrenceLayout))
		}

		if len(formatted) > 0 {
			c.printf("    then: %s\n", strings.Join(formatted, ", "))
		}
	}

	return nil
}

// Status prints the engine session state and the pending firings.
func (c *Controller) Status(ctx context.Context) error {
	st, err := c.client.Status(ctx)
	if err != nil {
		return err
	}

	c.printf("mode:       %s\n", st.Mode)
	c.printf("state:      %s\n", st.State)
	c.printf("alarms:     %d\n", st.Alarms)
	c.printf("skipped:    %d\n", st.Skipped)
	c.printf("generation: %d\n", st.Generation)

	if st.Stale {
		c.printf("stale:      %s\n", warning("yes"))
	} else {
		c.printf("stale:      no\n")
	}

	if len(st.Pending) == 0 {
		c.printf("pending:    none\n")

		return nil
	}

	c.printf("pending:\n")

	for _, p := range st.Pending {
		alarmID := p.AlarmID
		if alarmID == "" {
			alarmID = "<unknown>"
		}

		c.printf("  %10d  %s  %s\n", p.Identifier, p.At.Local().Format(time.RFC3339), alarmID)
	}

	return nil
}

// Confirm asks a yes/no question and reports whether the answer is yes.
func Confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", question)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Apply writes the set fields of the patch into a.
func (p Patch) Apply(a *domain.Alarm) error {
	if p.Time != nil {
		t, err := domain.ParseTimeOfDay(*p.Time)
		if err != nil {
			return err
		}

		a.Time = t
	}

	if p.Days != nil {
		days, err := domain.ParseDays(*p.Days)
		if err != nil {
			return err
		}

		a.Days = days
	}

	if p.Color != nil {
		alarmColor, err := domain.ParseColor(*p.Color)
		if err != nil {
			return err
		}

		a.Color = alarmColor
	}

	if p.Name != nil {
		a.Name = *p.Name
	}

	if p.Sound != nil {
		a.AudioPath = nil

		if *p.Sound != "" {
			sound := *p.Sound
			a.AudioPath = &sound
		}
	}

	if p.URL != nil {
		a.AudioURL = *p.URL
	}

	if p.Enabled != nil {
		a.IsSet = *p.Enabled
	}

	return nil
}

// defaults extracts the creation defaults from the patch.
func (p Patch) defaults() (domain.Defaults, error) {
	var defaults domain.Defaults

	if p.Time != nil {
		t, err := domain.ParseTimeOfDay(*p.Time)
		if err != nil {
			return defaults, err
		}

		defaults.Time = &t
	}

	if p.Color != nil {
		alarmColor, err := domain.ParseColor(*p.Color)
		if err != nil {
			return defaults, err
		}

		defaults.Color = alarmColor
	}

	if p.Name != nil {
		defaults.Name = *p.Name
	}

	if p.Enabled != nil {
		defaults.Disabled = !*p.Enabled
	}

	return defaults, nil
}

// empty reports whether no field is set.
func (p Patch) empty() bool {
	return p == Patch{}
}

func (c *Controller) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
