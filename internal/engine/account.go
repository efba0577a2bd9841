package engine

import (
	"context"
	"os"
	"os/user"
	"path/filepath"

	"github.com/Dicklesworthstone/osdiag/internal/diagnose"
	"github.com/Dicklesworthstone/osdiag/internal/model"
)

// CurrentUser is the account this process runs as.
type CurrentUser struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	UID      string `json:"uid,omitempty"`
	GID      string `json:"gid,omitempty"`
	HomeDir  string `json:"home_dir"`
}

// UserReport is the current account, the logged-in sessions, and the
// process environment.
type UserReport struct {
	Current        CurrentUser             `json:"current"`
	SessionsStatus model.Availability      `json:"sessions_status"`
	Sessions       []diagnose.UserSessions `json:"sessions"`
	WorkDir        string                  `json:"work_dir"`
	TempDir        string                  `json:"temp_dir"`
	PathEntries    int                     `json:"path_entries"`
	Failure        *model.FieldError       `json:"failure,omitempty"`
}

func currentUser() CurrentUser {
	if u, err := user.Current(); err == nil {
		return CurrentUser{Username: u.Username, Name: u.Name, UID: u.Uid, GID: u.Gid, HomeDir: u.HomeDir}
	}
	c := CurrentUser{Username: os.Getenv("USER")}
	if c.Username == "" {
		c.Username = os.Getenv("USERNAME")
	}
	c.HomeDir, _ = os.UserHomeDir()
	return c
}

func (e *Engine) UserInfo(ctx context.Context) (UserReport, error) {
	var out UserReport
	err := e.with(OpUserInfo, func(s *session) error {
		out = UserReport{
			Current:     currentUser(),
			TempDir:     s.id.TempDir,
			PathEntries: len(filepath.SplitList(os.Getenv("PATH"))),
		}
		out.WorkDir, _ = os.Getwd()

		u, err := s.src.Users(ctx)
		if err != nil {
			out.SessionsStatus = model.Unavailable
			out.Failure = e.annotate(OpUserInfo, model.FieldUsers, err)
			return nil
		}
		out.SessionsStatus = u.Status
		if out.SessionsStatus == "" {
			out.SessionsStatus = model.Unavailable
		}
		out.Sessions = diagnose.GroupSessions(u.Sessions)
		return nil
	})
	return out, err
}

// PowerReport is the power source, the CPU power state, and where the OS
// keeps its power settings.
type PowerReport struct {
	Battery BatteryReport `json:"battery"`
	diagnose.PowerProfile
	Failure *model.FieldError `json:"failure,omitempty"`
}

func (e *Engine) PowerSettings(ctx context.Context) (PowerReport, error) {
	var out PowerReport
	err := e.with(OpPowerSettings, func(s *session) error {
		out.Battery = e.battery(ctx, s, OpPowerSettings)
		f, err := s.src.CPUFreq(ctx)
		if err != nil {
			out.Failure = e.annotate(OpPowerSettings, model.FieldCPUFreq, err)
			f = model.CPUFreq{}
		}
		if f.Status == "" {
			f.Status = model.Unavailable
		}
		out.PowerProfile = diagnose.Power(s.src.Name(), f)
		return nil
	})
	return out, err
}
