package pipeline

import (
	"context"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"go.uber.org/zap"

	"github.com/stoneage-tools/ap-inbox/internal/model"
	"github.com/stoneage-tools/ap-inbox/pkg/epicor"
)

// maxVendorCandidates caps how many fuzzy matches are surfaced per invoice.
const maxVendorCandidates = 5

// resolveVendor matches an extracted vendor name against the ERP vendor
// directory. A directory failure degrades to no candidates; the pipeline
// never fails a message over it.
func (p *Pipeline) resolveVendor(ctx context.Context, vendorName string) []model.VendorCandidate {
	if strings.TrimSpace(vendorName) == "" {
		return nil
	}

	vendors, err := p.erp.FetchVendors(ctx)
	if err != nil {
		zap.L().Warn("vendor: directory fetch failed", zap.Error(err))
		return nil
	}

	return matchVendors(vendorName, vendors)
}

// matchVendors scores every vendor against the extracted name and returns
// the strongest candidates, best first. The score per vendor is the maximum
// of the simple, partial, and token-sort ratios so that word order, extra
// suffixes, and abbreviations all get a fair shot.
func matchVendors(vendorName string, vendors []epicor.Vendor) []model.VendorCandidate {
	target := strings.ToLower(strings.TrimSpace(vendorName))
	if target == "" {
		return nil
	}

	candidates := make([]model.VendorCandidate, 0, len(vendors))
	for _, v := range vendors {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		if name == "" {
			continue
		}

		score := fuzzy.Ratio(target, name)
		if s := fuzzy.PartialRatio(target, name); s > score {
			score = s
		}
		if s := fuzzy.TokenSortRatio(target, name); s > score {
			score = s
		}

		candidates = append(candidates, model.VendorCandidate{
			VendorID:   v.VendorID,
			VendorName: v.Name,
			VendorNum:  v.VendorNum,
			Confidence: score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > maxVendorCandidates {
		candidates = candidates[:maxVendorCandidates]
	}
	return candidates
}
