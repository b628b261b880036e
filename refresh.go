package tangguh

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/satriajdh/tangguh/internal/singleflight"
)

// refreshHandleKey is the single key under which the refresh call runs;
// there is never more than one logical refresh in the system.
const refreshHandleKey = "credential-refresh"

// refreshCoordinator performs at most one concurrent credential refresh.
// Every 401 arriving while a refresh is outstanding attaches to the same
// in-flight call instead of dispatching a new one.
type refreshCoordinator struct {
	group      *singleflight.Group
	transport  *Transport
	creds      *CredentialStore
	events     *dispatcher
	refreshURL string
	logger     Logger
	debug      *DebugConfig
	metrics    *MetricsCollector
}

func newRefreshCoordinator(transport *Transport, creds *CredentialStore, events *dispatcher, refreshURL string) *refreshCoordinator {
	return &refreshCoordinator{
		group:      singleflight.New(),
		transport:  transport,
		creds:      creds,
		events:     events,
		refreshURL: refreshURL,
	}
}

// refresh exchanges the current credential for a new one. On success the
// new token is persisted preserving the existing storage scope and
// returned. On failure the stored credential is cleared, a session-invalid
// signal is emitted, and every waiter receives the refresh error.
func (rc *refreshCoordinator) refresh(ctx context.Context) (string, error) {
	val, err, shared := rc.group.Do(refreshHandleKey, func() (interface{}, error) {
		return rc.doRefresh(ctx)
	})
	if shared && rc.metrics != nil {
		rc.metrics.RecordRefreshAttached()
	}
	if err != nil {
		return "", err
	}
	token, _ := val.(string)
	return token, nil
}

func (rc *refreshCoordinator) doRefresh(ctx context.Context) (interface{}, error) {
	if rc.debugEnabled() {
		rc.logger.Info("Refreshing credential", "url", rc.refreshURL)
	}

	resp, err := rc.transport.Do(ctx, http.MethodPost, rc.refreshURL, nil, nil, nil)
	if err != nil {
		return nil, rc.fail(err)
	}

	var payload struct {
		AccessToken string `json:"accessToken"`
	}
	if resp.Data != nil {
		if err := json.Unmarshal(resp.Data, &payload); err != nil {
			return nil, rc.fail(fmt.Errorf("tangguh: decode refresh payload: %w", err))
		}
	}
	if payload.AccessToken == "" {
		return nil, rc.fail(fmt.Errorf("tangguh: refresh response carried no access token"))
	}

	// Scope is preserved: Store reuses the last saved remember preference.
	if err := rc.creds.Store(payload.AccessToken); err != nil {
		return nil, rc.fail(fmt.Errorf("tangguh: persist refreshed credential: %w", err))
	}

	if rc.metrics != nil {
		rc.metrics.RecordRefresh("success")
	}
	if rc.debugEnabled() {
		rc.logger.Info("Credential refreshed")
	}
	return payload.AccessToken, nil
}

// fail handles a terminal refresh failure: the session cannot be recovered.
func (rc *refreshCoordinator) fail(cause error) error {
	rc.creds.Clear()
	if rc.metrics != nil {
		rc.metrics.RecordRefresh("failure")
	}

	err := fmt.Errorf("%w: %w", ErrSessionInvalid, cause)
	rc.events.sessionInvalid(err)

	if rc.logger != nil {
		rc.logger.Error("Credential refresh failed", "error", cause.Error())
	}
	return err
}

// reset drops any refresh bookkeeping (sign-out path).
func (rc *refreshCoordinator) reset() {
	rc.group.Forget(refreshHandleKey)
}

func (rc *refreshCoordinator) debugEnabled() bool {
	return rc.debug != nil && rc.debug.Enabled && rc.debug.LogRefresh && rc.logger != nil
}
