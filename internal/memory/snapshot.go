package memory

import (
	"context"
	"fmt"
	"sort"

	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
	"hyperbalance/internal/pipeline"
)

// Collect builds the memory datums for every active, running domain (spec
// §4.5), sorted by UUID to fix iteration order for the classifier (spec §9,
// "Iteration order in the memory classifier"). Domains newly seen since the
// previous tick have their memory-stats collection period programmed to
// intervalSeconds; domains already in seenUUIDs are left alone. The
// returned set replaces seenUUIDs for the next tick.
func Collect(ctx context.Context, gw gateway.Gateway, seenUUIDs map[string]struct{}, intervalSeconds int, logger *logx.Logger) ([]Datum, map[string]struct{}, error) {
	handles, err := gw.ListActiveRunningDomains(ctx)
	if err != nil {
		return nil, nil, err
	}

	datums := make([]Datum, 0, len(handles))
	nextSeen := make(map[string]struct{}, len(handles))

	for _, h := range handles {
		uuid, err := gw.DomainUUID(h)
		if err != nil {
			logger.Flag("domain uuid unavailable, skipping", "error", err)
			h.Release()
			continue
		}

		memLimit, vcpuCount, err := gw.DomainInfo(h)
		if err != nil {
			h.Release()
			return nil, nil, pipeline.FatalTick(fmt.Errorf("domain_info for %s: %w", uuid, err))
		}

		stats, err := gw.DomainMemoryStats(h)
		if err != nil {
			h.Release()
			return nil, nil, pipeline.FatalTick(fmt.Errorf("domain_memory_stats for %s: %w", uuid, err))
		}

		balloon, haveBalloon, unused, haveUnused := extractTags(stats)
		if !haveBalloon || !haveUnused {
			h.Release()
			return nil, nil, pipeline.FatalTick(fmt.Errorf("domain %s missing required memory-stats tag", uuid))
		}

		if _, seen := seenUUIDs[uuid]; !seen {
			if err := gw.DomainSetMemoryStatsPeriod(h, intervalSeconds); err != nil {
				logger.Flag("set memory stats period failed", "uuid", uuid, "error", err)
			}
		}
		nextSeen[uuid] = struct{}{}

		datums = append(datums, Datum{
			UUID:                  uuid,
			Handle:                h,
			VCPUCount:             vcpuCount,
			BalloonAllocatedBytes: balloon,
			UnusedBytes:           unused,
			MemoryLimitBytes:      memLimit,
			ProposedDeltaBytes:    0,
		})
	}

	sort.Slice(datums, func(i, j int) bool { return datums[i].UUID < datums[j].UUID })
	return datums, nextSeen, nil
}

func extractTags(stats []gateway.MemoryStat) (balloon uint64, haveBalloon bool, unused uint64, haveUnused bool) {
	for _, s := range stats {
		switch s.Tag {
		case gateway.MemoryStatActualBalloon:
			balloon, haveBalloon = s.Value*1024, true
		case gateway.MemoryStatUnused:
			unused, haveUnused = s.Value*1024, true
		}
	}
	return
}
