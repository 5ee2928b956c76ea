// Package admin implements the authenticated administrative surface.
//
// The panel is an external collaborator of the transaction engine: it
// authenticates a shared secret, then calls the hooks the engine exposes
// (restock, refill, sales report) or acts on the history log directly
// (clear). It carries no transactional logic of its own - the engine
// re-validates stock at commit time precisely because the panel can change
// counters underneath an open selection.
//
// The secret is held as a SHA-256 digest and compared in constant time.
package admin

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/vendo/internal/machine"
)

// ErrAccessDenied is returned when the presented secret does not match.
var ErrAccessDenied = errors.New("admin: access denied")

// ErrEmptySecret is returned when rotating to an empty secret.
var ErrEmptySecret = errors.New("admin: new secret must not be empty")

// Panel is the administrative control surface over one machine.
type Panel struct {
	mu      sync.Mutex
	machine *machine.Machine
	digest  [sha256.Size]byte
	logger  *slog.Logger
}

// New creates a panel guarding the machine with the given shared secret.
func New(m *machine.Machine, secret string) *Panel {
	return &Panel{
		machine: m,
		digest:  sha256.Sum256([]byte(secret)),
		logger:  slog.Default(),
	}
}

// Verify reports whether the presented secret matches, in constant time.
func (p *Panel) Verify(secret string) bool {
	p.mu.Lock()
	digest := p.digest
	p.mu.Unlock()

	presented := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(digest[:], presented[:]) == 1
}

// Restock sets an item's stock counter after authenticating.
func (p *Panel) Restock(ctx context.Context, secret, itemID string, n int) error {
	if !p.Verify(secret) {
		p.logger.Warn("admin access denied", "op", "restock")
		return ErrAccessDenied
	}
	return p.machine.Restock(ctx, itemID, n)
}

// RefillAll restores every counter to capacity after authenticating.
func (p *Panel) RefillAll(ctx context.Context, secret string) error {
	if !p.Verify(secret) {
		p.logger.Warn("admin access denied", "op", "refill_all")
		return ErrAccessDenied
	}
	p.machine.RefillAll(ctx)
	return nil
}

// ClearHistory wipes the history log. Irreversible.
func (p *Panel) ClearHistory(ctx context.Context, secret string) error {
	if !p.Verify(secret) {
		p.logger.Warn("admin access denied", "op", "clear_history")
		return ErrAccessDenied
	}
	if err := p.machine.History().Clear(ctx); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	// Appended after the wipe so the audit record survives it.
	p.machine.NoteAdminAction(ctx, "clear_history")
	p.logger.Info("history cleared")
	return nil
}

// ResetCounter zeroes the sales counter after authenticating.
func (p *Panel) ResetCounter(ctx context.Context, secret string) error {
	if !p.Verify(secret) {
		p.logger.Warn("admin access denied", "op", "reset_counter")
		return ErrAccessDenied
	}
	p.machine.ResetCounter(ctx)
	return nil
}

// RotateSecret replaces the shared secret. The old secret must verify and
// the new one must be non-empty. Appends an admin record; the secret
// values themselves never reach the log.
func (p *Panel) RotateSecret(ctx context.Context, oldSecret, newSecret string) error {
	if !p.Verify(oldSecret) {
		p.logger.Warn("admin access denied", "op", "rotate_secret")
		return ErrAccessDenied
	}
	if newSecret == "" {
		return ErrEmptySecret
	}

	p.mu.Lock()
	p.digest = sha256.Sum256([]byte(newSecret))
	p.mu.Unlock()

	p.machine.NoteAdminAction(ctx, "rotate_secret")
	p.logger.Info("admin secret rotated")
	return nil
}

// Report returns the sales report after authenticating.
func (p *Panel) Report(secret string) (machine.Report, error) {
	if !p.Verify(secret) {
		p.logger.Warn("admin access denied", "op", "report")
		return machine.Report{}, ErrAccessDenied
	}
	return p.machine.SalesReport(), nil
}
