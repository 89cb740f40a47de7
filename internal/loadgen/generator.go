package loadgen

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/internal/domain/types"
)

// pairs are (role, event) combinations that earn points under the default
// catalog, so most generated traffic is awardable.
var pairs = []struct {
	role  model.Role
	event model.EventType
}{
	{model.RoleBroker, model.EventRFQQualityPosted},
	{model.RoleBroker, model.EventQuoteAccepted},
	{model.RoleBroker, model.EventDealClosed},
	{model.RoleOperator, model.EventQuoteSubmitted},
	{model.RoleOperator, model.EventQuoteSubmittedFast},
	{model.RoleOperator, model.EventFastResponse},
	{model.RolePilot, model.EventDocumentVerified},
	{model.RolePilot, model.EventBriefingCompleted},
	{model.RoleCrew, model.EventDealClosedOnTime},
	{model.RoleCrew, model.EventProfileCompleted},
}

// randIntn returns a uniform int in [0, n) from crypto/rand.
func randIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

func randFloat() float64 {
	const scale = 1_000_000
	return float64(randIntn(scale)) / scale
}

// user is a synthetic account with a fixed role.
type user struct {
	id   string
	role model.Role
}

func newUsers(n int) []user {
	roles := []model.Role{model.RoleBroker, model.RoleOperator, model.RolePilot, model.RoleCrew}
	us := make([]user, n)
	for i := range us {
		us[i] = user{id: "load-" + uuid.NewString(), role: roles[i%len(roles)]}
	}
	return us
}

// Generate builds cfg.Awards requests. A DuplicatePct share replays an
// earlier request verbatim, source key included.
func Generate(cfg Config) []types.AwardRequest {
	users := newUsers(cfg.Users)
	byRole := map[model.Role][]model.EventType{}
	for _, p := range pairs {
		byRole[p.role] = append(byRole[p.role], p.event)
	}

	out := make([]types.AwardRequest, 0, cfg.Awards)
	for len(out) < cfg.Awards {
		if len(out) > 0 && randFloat() < cfg.DuplicatePct {
			out = append(out, out[randIntn(len(out))])
			continue
		}
		u := users[randIntn(len(users))]
		events := byRole[u.role]
		ev := events[randIntn(len(events))]
		out = append(out, types.AwardRequest{
			UserID:    u.id,
			Role:      string(u.role),
			EventType: string(ev),
			SourceKey: "load:" + uuid.NewString() + "|rule:" + string(ev),
			Metadata:  map[string]string{"origin": "loadgen"},
		})
	}
	return out
}
