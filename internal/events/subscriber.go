// Package events listens to restaurant backend notifications on NATS and
// keeps every open admin dashboard in step with them.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kiwari-pos/console/internal/service"
	"github.com/nats-io/nats.go"
)

// HandlerFunc processes one message received on subject.
type HandlerFunc func(ctx context.Context, subject string, data []byte) error

// Subscriber is a NATS connection with the console's subscriptions on it.
type Subscriber struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect dials the NATS server at url. The connection reconnects forever.
func Connect(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url,
		nats.Name("kiwari-console"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("WARNING: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Subscriber{conn: conn}, nil
}

// Subscribe routes messages on each subject to handler. ctx is passed to
// every handler call; handler errors are logged.
func (s *Subscriber) Subscribe(ctx context.Context, handler HandlerFunc, subjects ...string) error {
	for _, subject := range subjects {
		sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
			if err := handler(ctx, msg.Subject, msg.Data); err != nil {
				log.Printf("ERROR: handle %s: %v", msg.Subject, err)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}
	return nil
}

// Close drains the subscriptions and closes the connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
	return s.conn.Drain()
}

// SessionSet iterates live admin sessions. Satisfied by *service.Registry.
type SessionSet interface {
	Each(fn func(*service.AdminSession))
}

// RefreshTables returns a handler that reloads the table list of every live
// session, so occupancy changes made elsewhere reach the dashboards. Each
// refresh is bounded by timeout; failures are collected, not fatal.
func RefreshTables(sessions SessionSet, timeout time.Duration) HandlerFunc {
	return func(ctx context.Context, subject string, _ []byte) error {
		var (
			mu   sync.Mutex
			errs []error
			wg   sync.WaitGroup
		)
		sessions.Each(func(sess *service.AdminSession) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				if err := sess.RefreshTables(rctx); err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
					mu.Unlock()
				}
			}()
		})
		wg.Wait()
		return errors.Join(errs...)
	}
}
