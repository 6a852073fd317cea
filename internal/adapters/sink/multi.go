package sink

import (
	"context"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/ports"
	"strings"
)

// MultiSink saves to each sink in order and stops at the first error.
// The returned reference joins every sink's reference with "; ".
type MultiSink []ports.RouteSink

func (m MultiSink) Save(ctx context.Context, plan *domain.RoutePlan) (string, error) {
	refs := make([]string, 0, len(m))
	for _, s := range m {
		ref, err := s.Save(ctx, plan)
		if err != nil {
			return "", err
		}
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	return strings.Join(refs, "; "), nil
}
