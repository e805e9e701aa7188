package extract

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tomhaines/filingfacts/internal/interfaces"
	"github.com/tomhaines/filingfacts/internal/models"
)

// RunCache memoizes whole extraction runs by their parameters, so repeated
// identical-parameter runs skip the network path entirely. Dropping the
// cache preference clears the memo before re-running.
type RunCache struct {
	extractor interfaces.FinancialExtractor

	mu      sync.Mutex
	entries map[string]*models.FinancialPayload
}

// NewRunCache wraps an extractor with parameter-keyed memoization.
func NewRunCache(extractor interfaces.FinancialExtractor) *RunCache {
	return &RunCache{
		extractor: extractor,
		entries:   make(map[string]*models.FinancialPayload),
	}
}

// Extract returns the memoized payload for identical parameters when
// preferCache is set; otherwise the memo is cleared and the run re-executes.
func (rc *RunCache) Extract(ctx context.Context, req interfaces.ExtractRequest, preferCache bool) (*models.FinancialPayload, error) {
	key := requestKey(req)

	rc.mu.Lock()
	if preferCache {
		if payload, ok := rc.entries[key]; ok {
			rc.mu.Unlock()
			return payload, nil
		}
	} else {
		rc.entries = make(map[string]*models.FinancialPayload)
	}
	rc.mu.Unlock()

	payload, err := rc.extractor.Extract(ctx, req)
	if err != nil {
		return nil, err
	}

	rc.mu.Lock()
	rc.entries[key] = payload
	rc.mu.Unlock()

	return payload, nil
}

func requestKey(req interfaces.ExtractRequest) string {
	data, _ := json.Marshal(req)
	return fmt.Sprintf("%x", md5.Sum(data))
}

// RunID derives a stable identifier for a completed run, used to name
// exported artifacts.
func RunID(company string, years int, payload *models.FinancialPayload) string {
	data, _ := json.Marshal(payload)
	hash := fmt.Sprintf("%x", md5.Sum(data))
	return fmt.Sprintf("%s_%dy_%s", strings.ToLower(company), years, hash[:10])
}
