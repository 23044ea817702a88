package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salonflow/salonflow-sessions/internal/keyspace"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

const healthProbeTTL = 30 * time.Second

// HealthCheck verifies store reachability and runs one synthetic
// write/read/delete cycle under a throwaway probe key, reporting
// per-check latency.
func (s *Store) HealthCheck(ctx context.Context) *model.HealthReport {
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	report := &model.HealthReport{
		Status: "ok",
		Checks: make(map[string]model.CheckResult),
	}

	start := s.now()
	err := s.kv.Ping(cctx)
	report.Checks["ping"] = checkResult(start, s.now(), err)

	probeKey := keyspace.HealthProbe(uuid.NewString())
	probeVal := []byte(`{"probe":true}`)

	start = s.now()
	err = s.kv.Set(cctx, probeKey, probeVal, healthProbeTTL)
	if err == nil {
		var got []byte
		got, err = s.kv.Get(cctx, probeKey)
		if err == nil && string(got) != string(probeVal) {
			err = fmt.Errorf("probe read mismatch")
		}
		if delErr := s.kv.Delete(cctx, probeKey); err == nil {
			err = delErr
		}
	}
	report.Checks["write_read_delete"] = checkResult(start, s.now(), err)

	for _, c := range report.Checks {
		if !c.OK {
			report.Status = "degraded"
			break
		}
	}
	return report
}

func checkResult(start, end time.Time, err error) model.CheckResult {
	res := model.CheckResult{
		OK:        err == nil,
		LatencyMS: end.Sub(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
