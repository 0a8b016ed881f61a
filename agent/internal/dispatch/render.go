package dispatch

import (
	"fmt"
	"strings"
	"time"

	"ca-monitor/agent/internal/mentions"
	"ca-monitor/agent/internal/registry"
)

func shortToken(addr string) string {
	if len(addr) > 16 {
		return addr[:16] + "..."
	}
	return addr
}

func renderNewToken(st registry.Stats, durationHours int, pollInterval time.Duration) string {
	return fmt.Sprintf(
		"🆕 *NEW TOKEN DETECTED*\n\n"+
			"🪙 *%s*\n"+
			"📍 `%s`\n\n"+
			"📊 Existing: *%d*\n"+
			"✅ Verified: *%d* | 👤 Regular: *%d*\n\n"+
			"⏳ Monitoring: %dh | 🔔 Updates: %dm",
		st.DisplayName(), st.Address,
		st.RunningTotal, st.RunningVerified, st.RunningNonVerified,
		durationHours, int(pollInterval.Minutes()),
	)
}

func renderCycle(st registry.Stats, sorted []mentions.Mention, batchTopN int, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🆕 *%d New Mentions*\n🪙 *%s* (`%s`)\n\n", len(sorted), st.DisplayName(), shortToken(st.Address))
	fmt.Fprintf(&b, "📊 Total: *%d* | ✅ %d | 👤 %d\n", st.RunningTotal, st.RunningVerified, st.RunningNonVerified)
	fmt.Fprintf(&b, "⏱️ %s | 🔸 Batch: +%d\n\n🔥 *Top Posts:*\n", st.MonitoringTimeString(now), len(sorted))

	shown := sorted
	if len(shown) > batchTopN {
		shown = shown[:batchTopN]
	}
	for _, m := range shown {
		badge := ""
		if m.Verified {
			badge = "✅"
		}
		text := strings.ReplaceAll(m.Text, "\n", " ")
		if len(text) > 100 {
			text = text[:100] + "..."
		}
		fmt.Fprintf(&b, "\n%s@%s | ❤️%d 🔄%d\n_%s_\n[View](%s)\n", badge, m.Author, m.Likes, m.Reposts, text, m.Permalink)
	}
	if len(sorted) > batchTopN {
		fmt.Fprintf(&b, "\n_+%d more_", len(sorted)-batchTopN)
	}

	return b.String()
}

// activityBucket grades a finished session by how many mentions it gathered
// after the initial snapshot.
func activityBucket(newMentions int) string {
	switch {
	case newMentions > 50:
		return "🚀 Explosive"
	case newMentions > 20:
		return "🔥 High"
	case newMentions > 5:
		return "📈 Moderate"
	default:
		return "📊 Low"
	}
}

func renderCompletion(st registry.Stats, durationHours int) string {
	newTotal := st.NewMentions()
	newVerified := st.RunningVerified - st.InitialVerified
	newNonVerified := st.RunningNonVerified - st.InitialNonVerified

	return fmt.Sprintf(
		"🏁 *MONITORING COMPLETE*\n\n"+
			"🪙 *%s* (`%s`)\n\n"+
			"📋 Initial: *%d* (✅%d 👤%d)\n"+
			"🆕 New: *%d* (✅%d 👤%d)\n\n"+
			"📈 *Total: %d*\n"+
			"✅ Verified: %d | 👤 Regular: %d\n\n"+
			"📊 Activity: %s\n"+
			"⏱️ Duration: %dh\n\n"+
			"_Post token again to rescan_",
		st.DisplayName(), shortToken(st.Address),
		st.InitialTotal, st.InitialVerified, st.InitialNonVerified,
		newTotal, newVerified, newNonVerified,
		st.RunningTotal, st.RunningVerified, st.RunningNonVerified,
		activityBucket(newTotal), durationHours,
	)
}

func rankPrefix(i int) string {
	switch i {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", i)
	}
}

func renderLeaderboard(ranked []registry.Stats, now time.Time, pollInterval time.Duration) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *TOP %d TOKENS*\n\n", len(ranked))
	for i, st := range ranked {
		fmt.Fprintf(&b, "%s *%s*\n`%s`\n", rankPrefix(i+1), st.DisplayName(), st.Address)
		fmt.Fprintf(&b, "📈 Avg: *%.1f* | Total: *%d* | +%d (%dm)\n",
			st.AverageMentionRate(now), st.RunningTotal, st.LastCycleTotal, int(pollInterval.Minutes()))
		fmt.Fprintf(&b, "🆕 New: %d | ✅ %d | 👤 %d | ⏱️ %s\n\n",
			st.NewMentions(), st.RunningVerified, st.RunningNonVerified, st.MonitoringTimeString(now))
	}
	fmt.Fprintf(&b, "🔄 _Updates every %d min_", int(pollInterval.Minutes()))

	return b.String()
}
