package vectorDB

import (
	"context"
	"sort"
	"sync"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/panjf2000/ants/v2"
)

const provisionConcurrency = 4

// ProvisionAll provisions every tenant independently; one failure never stops the rest.
func ProvisionAll(ctx context.Context, mgr TenantStoreManager, tenantIds []string) commonModels.ProvisionReport {
	log := logger_i.NewLogger("Provision Backfill").FromContext(ctx)
	report := commonModels.ProvisionReport{Failed: map[string]string{}}

	var mu sync.Mutex
	record := func(tenantId string, existed bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			report.Failed[tenantId] = err.Error()
		case existed:
			report.Existing = append(report.Existing, tenantId)
		default:
			report.Created = append(report.Created, tenantId)
		}
	}

	provisionOne := func(tenantId string) {
		existed, err := mgr.Exists(ctx, tenantId)
		if err != nil {
			log.Warn("exists check failed, provisioning anyway", "tenantId", tenantId, "error", err)
			existed = false
		}
		if _, err = mgr.Provision(ctx, tenantId); err != nil {
			log.Error("provision failed", "tenantId", tenantId, "error", err)
			record(tenantId, false, err)
			return
		}
		record(tenantId, existed, nil)
	}

	pool, err := ants.NewPool(provisionConcurrency)
	var wg sync.WaitGroup
	for _, tenantId := range dedupe(tenantIds) {
		if ctx.Err() != nil {
			record(tenantId, false, ctx.Err())
			continue
		}
		if err != nil {
			provisionOne(tenantId)
			continue
		}
		wg.Add(1)
		if submitErr := pool.Submit(func() {
			defer wg.Done()
			provisionOne(tenantId)
		}); submitErr != nil {
			wg.Done()
			provisionOne(tenantId)
		}
	}
	wg.Wait()
	if pool != nil {
		pool.Release()
	}

	sort.Strings(report.Created)
	sort.Strings(report.Existing)
	log.Info("provision backfill finished", "created", len(report.Created), "existing", len(report.Existing), "failed", len(report.Failed))
	return report
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
