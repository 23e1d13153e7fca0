package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/janisto/storytime-api/internal/domain"
)

// Service errors
var (
	ErrNotFound      = errors.New("profile not found")
	ErrAlreadyExists = errors.New("profile already exists")
)

// UpdateParams for user edits of a profile. Nil fields are left unchanged.
type UpdateParams struct {
	ChildName *string
	Interests []string
	StoryTime *domain.TimeOfDay
	TimeZone  *string
}

// Store persists the child profile of each user.
//
// Implementations must normalize input data:
//   - ChildName: trim whitespace
//   - Interests: trim whitespace, drop empty entries and duplicates, keep order
type Store interface {
	Create(ctx context.Context, userID string, p domain.Profile) (*domain.Profile, error)
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Update(ctx context.Context, userID string, params UpdateParams) (*domain.Profile, error)
	Save(ctx context.Context, userID string, p domain.Profile) error
	Delete(ctx context.Context, userID string) error
}

// NormalizeInterests trims entries and removes blanks and duplicates,
// keeping first occurrences in order.
func NormalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func normalize(p domain.Profile) domain.Profile {
	p = p.Clone()
	p.ChildName = strings.TrimSpace(p.ChildName)
	p.Interests = NormalizeInterests(p.Interests)
	p.TimeZone = strings.TrimSpace(p.TimeZone)
	return p
}

func applyUpdate(p *domain.Profile, params UpdateParams) {
	if params.ChildName != nil {
		p.ChildName = strings.TrimSpace(*params.ChildName)
	}
	if params.Interests != nil {
		p.Interests = NormalizeInterests(params.Interests)
	}
	if params.StoryTime != nil {
		p.StoryTime = *params.StoryTime
	}
	if params.TimeZone != nil {
		p.TimeZone = strings.TrimSpace(*params.TimeZone)
	}
}
