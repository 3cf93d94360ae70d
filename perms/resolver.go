// Package perms computes who may invoke which command. Effective rank comes
// from a guild's role-to-rank table; required rank from a per-command
// override or the command category's default.
package perms

import (
	"fmt"
	"sync"

	"warden-bot/model"
	"warden-bot/utils/database/ranks"
)

// Decision is the outcome of one permission resolution.
type Decision struct {
	RequiredRank  int
	EffectiveRank int
	Allowed       bool
}

// guildView is an immutable snapshot of a guild's permission tables. It is
// replaced wholesale on invalidation, never patched in place.
type guildView struct {
	roleRanks map[string]int
	overrides map[string]int
}

// Resolver resolves command permissions with a read-through per-guild cache.
type Resolver struct {
	store             *ranks.Store
	categoryDefaults  map[string]int
	commandCategories map[string]string

	mu    sync.RWMutex
	views map[string]*guildView
	gens  map[string]uint64 // bumped by Invalidate; guards loads racing it
}

// NewResolver creates a resolver. categoryDefaults maps a command category to
// its default minimum rank; commandCategories maps each command name to its
// category.
func NewResolver(store *ranks.Store, categoryDefaults map[string]int, commandCategories map[string]string) *Resolver {
	return &Resolver{
		store:             store,
		categoryDefaults:  categoryDefaults,
		commandCategories: commandCategories,
		views:             make(map[string]*guildView),
		gens:              make(map[string]uint64),
	}
}

// Resolve computes the required and effective ranks for an invocation.
// Owners and sysadmins always resolve to the rank ceiling. The resolution is
// deterministic and has no side effects beyond filling the cache.
func (r *Resolver) Resolve(guildID, command string, roleIDs []string, isOwner, isSysadmin bool) (Decision, error) {
	view, err := r.view(guildID)
	if err != nil {
		return Decision{}, err
	}

	effective := model.MinRank
	if isOwner || isSysadmin {
		effective = model.MaxRank
	} else {
		for _, roleID := range roleIDs {
			if rank, ok := view.roleRanks[roleID]; ok && rank > effective {
				effective = rank
			}
		}
	}

	required := model.MinRank
	if override, ok := view.overrides[command]; ok {
		required = override
	} else if category, ok := r.commandCategories[command]; ok {
		if def, ok := r.categoryDefaults[category]; ok {
			required = def
		}
	}

	return Decision{
		RequiredRank:  required,
		EffectiveRank: effective,
		Allowed:       effective >= required,
	}, nil
}

// Check wraps Resolve and turns a denial into model.ErrPermissionDenied so
// command handlers can gate with a single errors.Is.
func (r *Resolver) Check(guildID, command string, roleIDs []string, isOwner, isSysadmin bool) (Decision, error) {
	d, err := r.Resolve(guildID, command, roleIDs, isOwner, isSysadmin)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		return d, fmt.Errorf("%w: command %s requires rank %d, you have rank %d",
			model.ErrPermissionDenied, command, d.RequiredRank, d.EffectiveRank)
	}
	return d, nil
}

// Invalidate drops the cached view for a guild. Callers invoke it after any
// rank mapping or command override change. Bumping the generation makes a
// load that started before the change miss the cache instead of publishing
// pre-change rows.
func (r *Resolver) Invalidate(guildID string) {
	r.mu.Lock()
	delete(r.views, guildID)
	r.gens[guildID]++
	r.mu.Unlock()
}

func (r *Resolver) view(guildID string) (*guildView, error) {
	r.mu.RLock()
	view, ok := r.views[guildID]
	gen := r.gens[guildID]
	r.mu.RUnlock()
	if ok {
		return view, nil
	}
	return r.load(guildID, gen)
}

// load reads a guild's permission tables and caches them, unless an
// Invalidate landed since the caller observed gen: the rows may then predate
// the change, so they serve this one resolution but are not cached.
func (r *Resolver) load(guildID string, gen uint64) (*guildView, error) {
	roleRanks, err := r.store.GetRanks(guildID)
	if err != nil {
		return nil, err
	}
	overrides, err := r.store.GetOverrides(guildID)
	if err != nil {
		return nil, err
	}

	view := &guildView{roleRanks: roleRanks, overrides: overrides}
	r.mu.Lock()
	if r.gens[guildID] == gen {
		r.views[guildID] = view
	}
	r.mu.Unlock()
	return view, nil
}
