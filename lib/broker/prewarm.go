package broker

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/lib/config"
	"github.com/segmentio/aws-figgy/lib/prompt"
	"github.com/segmentio/aws-figgy/lib/provider"
	"github.com/segmentio/aws-figgy/lib/roles"
)

// PrewarmResult is the outcome of fetching one environment's session.
type PrewarmResult struct {
	Env     string
	Session *provider.Session
	Err     error
}

// Prewarm fetches sessions for role in every env in parallel, bounded by
// the configured worker count. An empty envs means every env the role is
// granted in. Failures are reported per env; results are sorted by env. An
// aborted prompt or a cancelled ctx stops every remaining fetch and is
// returned as the error.
//
// The first env is fetched alone so the operator authenticates once before
// the rest reuse the identity session.
func (b *Broker) Prewarm(ctx context.Context, role string, envs []string) ([]PrewarmResult, error) {
	if role == "" {
		role = b.cfg.DefaultRole
	}
	catalog, err := b.AssumableRoles(ctx)
	if err != nil {
		return nil, err
	}

	var targets roles.Catalog
	if len(envs) == 0 {
		targets = catalog.WithRole(role)
	} else {
		for _, env := range envs {
			r, err := catalog.Find(env, role)
			if err != nil {
				return nil, err
			}
			targets = append(targets, r)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].RunEnv.Env < targets[j].RunEnv.Env })
	if len(targets) == 0 {
		return nil, nil
	}

	results := make([]PrewarmResult, len(targets))
	fetch := func(ctx context.Context, i int) error {
		sess, err := b.provider.GetSession(ctx, targets[i], false)
		results[i] = PrewarmResult{Env: targets[i].RunEnv.Env, Session: sess, Err: err}
		if err == nil {
			return nil
		}
		log.WithField("env", targets[i].RunEnv.Env).Debugf("prewarm failed: %s", err)
		if interrupted(err) {
			return err
		}
		return nil
	}

	if err := fetch(ctx, 0); err != nil {
		return nil, err
	}

	workers := b.cfg.Workers
	if workers < 1 {
		workers = config.DefaultWorkers
	} else if workers > config.MaxWorkers {
		workers = config.MaxWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 1; i < len(targets); i++ {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return fetch(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// interrupted reports whether the operator aborted a prompt or the request
// was cancelled, which ends the whole prewarm.
func interrupted(err error) bool {
	return xerrors.Is(err, prompt.ErrAborted) ||
		xerrors.Is(err, context.Canceled) ||
		xerrors.Is(err, context.DeadlineExceeded)
}
