package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/michaelpento.lv/swapquote/types"
)

// PairChecker reports whether an exchange has a pair for two tokens
type PairChecker interface {
	PairExists(ctx context.Context, a, b types.Token) (bool, error)
}

// PathBuilder finds the path from src to dst through one intermediate token
type PathBuilder struct {
	pairs PairChecker
}

func NewPathBuilder(pairs PairChecker) *PathBuilder {
	return &PathBuilder{pairs: pairs}
}

// Build returns [src, dst] when mid is one of the endpoints and the direct
// pair exists, [src, mid, dst] when both legs exist and nil otherwise. A
// lookup error is only returned when it leaves the answer undecided.
func (b *PathBuilder) Build(ctx context.Context, src, dst, mid types.Token) (types.SwapPath, error) {
	if src.SameToken(dst) {
		return nil, fmt.Errorf("source and destination are both %s: %w", src, types.ErrInvalidArgument)
	}

	if src.SameToken(mid) || dst.SameToken(mid) {
		ok, err := b.pairs.PairExists(ctx, src, dst)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return types.SwapPath{src, dst}, nil
	}

	var (
		wg   sync.WaitGroup
		legs [2]bool
		errs [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		legs[0], errs[0] = b.pairs.PairExists(ctx, src, mid)
	}()
	go func() {
		defer wg.Done()
		legs[1], errs[1] = b.pairs.PairExists(ctx, mid, dst)
	}()
	wg.Wait()

	// a leg known to be missing settles it whatever the other lookup did
	for i := range legs {
		if errs[i] == nil && !legs[i] {
			return nil, nil
		}
	}
	if err := errors.Join(errs[0], errs[1]); err != nil {
		return nil, err
	}

	return types.SwapPath{src, mid, dst}, nil
}
