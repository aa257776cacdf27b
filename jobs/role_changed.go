package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gazette-app/gazette/internal/jobs"
	"github.com/gazette-app/gazette/internal/rbac"
)

// RoleChangedJob emails a user the capabilities that come with their new role.
type RoleChangedJob struct {
	Mailer  Mailer
	From    string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskTypeRoleChanged tasks.
func (j *RoleChangedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("role changed: handler not configured")
	}
	var payload RoleChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("role changed payload: %v: %w", err, asynq.SkipRetry)
	}
	role, err := rbac.ParseRole(payload.NewRole)
	if err != nil || payload.Email == "" {
		return fmt.Errorf("role changed payload: invalid role or recipient: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskTypeRoleChanged)
	defer func() { err = tracker.End(err) }()

	msg := ComposeRoleChanged(j.From, payload.Email, payload.PreviousRole, role)
	if err = j.Mailer.Send(ctx, msg); err != nil {
		j.logger().Error("send role change mail", slog.Int64("user_id", payload.UserID), slog.Any("error", err))
		return err
	}
	j.Metrics.NotificationSent("role_changed")
	j.logger().Info("role change mail sent", slog.Int64("user_id", payload.UserID), slog.String("role", role.String()))
	return nil
}

// ComposeRoleChanged renders the notification for a user now holding role.
func ComposeRoleChanged(from, to, previous string, role rbac.Role) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hello,\n\nYour Gazette role is now %s", role.Label())
	if prev, err := rbac.ParseRole(previous); err == nil {
		fmt.Fprintf(&body, " (previously %s)", prev.Label())
	}
	body.WriteString(".\n\nWith this role you can:\n")
	listing := rbac.CapabilityListing(role)
	if len(listing) == 0 {
		body.WriteString("- browse published posts\n")
	}
	for _, line := range listing {
		fmt.Fprintf(&body, "- %s\n", line)
	}
	return Message{
		From:    from,
		To:      to,
		Subject: "Your Gazette role is now " + role.Label(),
		Body:    body.String(),
	}
}

func (j *RoleChangedJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
