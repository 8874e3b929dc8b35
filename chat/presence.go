package chat

import (
	"context"
	"fmt"
	"log/slog"

	"privchat/contract"
	"privchat/domain"
	"privchat/domain/event"
)

// Presence computes the set of groups representing a user's dialog
// partners and broadcasts online/offline transitions to them. The set
// is recomputed from the store on every call; nothing is cached, at the
// cost of one store round-trip per connect and disconnect.
type Presence struct {
	log   *slog.Logger
	store contract.Store
	bus   contract.GroupBus
}

func NewPresence(log *slog.Logger, store contract.Store, bus contract.GroupBus) *Presence {
	return &Presence{log: log, store: store, bus: bus}
}

// PartnerGroups returns every dialog group of the user except the
// user's own. Self-suppression compares group identifiers, nothing
// else.
func (p *Presence) PartnerGroups(ctx context.Context, user *domain.User) ([]string, error) {
	groups, err := p.store.DialogGroupsFor(ctx, user.PK)
	if err != nil {
		return nil, fmt.Errorf("computing dialog groups for %s: %w", user.PK, err)
	}
	partners := groups[:0]
	for _, g := range groups {
		if g != user.GroupName() {
			partners = append(partners, g)
		}
	}
	return partners, nil
}

func (p *Presence) NotifyOnline(ctx context.Context, user *domain.User) error {
	partners, err := p.PartnerGroups(ctx, user)
	if err != nil {
		return err
	}
	p.log.Info(fmt.Sprintf("User %s connected, sending went_online to %d dialog groups", user.PK, len(partners)))
	for _, g := range partners {
		p.bus.Publish(ctx, g, event.WentOnline{Username: user.Username})
	}
	return nil
}

func (p *Presence) NotifyOffline(ctx context.Context, user *domain.User) error {
	partners, err := p.PartnerGroups(ctx, user)
	if err != nil {
		return err
	}
	p.log.Info(fmt.Sprintf("User %s disconnected, sending went_offline to %d dialog groups", user.PK, len(partners)))
	for _, g := range partners {
		p.bus.Publish(ctx, g, event.WentOffline{Username: user.Username})
	}
	return nil
}
