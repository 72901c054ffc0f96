package telemetry

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 9, 30, 5, 0, time.UTC)
}

func newTestBuilder(t *testing.T, opts Options) *Builder {
	t.Helper()
	if opts.Period == 0 {
		opts.Period = time.Second
	}
	if opts.BucketMM == 0 {
		opts.BucketMM = 0.2
	}
	opts.Seed = 7
	b, err := NewBuilder(opts)
	require.NoError(t, err)
	b.now = fixedNow
	return b
}

func TestSensorPayload(t *testing.T) {
	t.Run("Both Blocks By Default", func(t *testing.T) {
		b := newTestBuilder(t, Options{Mode: ModeSensors, Station: "tx01"})

		payload, err := b.Next()
		require.NoError(t, err)

		var rec SensorRecord
		require.NoError(t, json.Unmarshal(payload, &rec))
		assert.Equal(t, fixedNow().Format(LocalLayout), rec.TS)
		assert.Equal(t, uint64(0), rec.Seq)
		assert.Equal(t, "tx01", rec.Station)
		require.NotNil(t, rec.Rain)
		require.NotNil(t, rec.Seismic)
		assert.Equal(t, 0.2, rec.Rain.BucketMM)
	})

	t.Run("Key Order", func(t *testing.T) {
		b := newTestBuilder(t, Options{Mode: ModeSensors, Station: "tx01"})
		payload, err := b.Next()
		require.NoError(t, err)

		s := string(payload)
		order := []string{`"ts"`, `"seq"`, `"station"`, `"rain"`, `"intensity_mm_h"`, `"bucket_mm"`,
			`"bucket_tips_total"`, `"rain_mm_total"`, `"seismic"`, `"ax_g"`, `"ay_g"`, `"az_g"`, `"pga_g"`, `"rms_g"`}
		last := -1
		for _, key := range order {
			idx := strings.Index(s, key)
			require.GreaterOrEqual(t, idx, 0, "missing %s", key)
			assert.Greater(t, idx, last, "%s out of order", key)
			last = idx
		}
		assert.NotContains(t, s, ": ", "payload must be compact")
		assert.NotContains(t, s, ", ", "payload must be compact")
	})

	t.Run("Rain Only", func(t *testing.T) {
		b := newTestBuilder(t, Options{Mode: ModeSensors, Rain: true})
		payload, _ := b.Next()
		assert.Contains(t, string(payload), `"rain"`)
		assert.NotContains(t, string(payload), `"seismic"`)
		assert.NotContains(t, string(payload), `"station"`)
	})

	t.Run("Seismic Only", func(t *testing.T) {
		b := newTestBuilder(t, Options{Mode: ModeSensors, Seismic: true})
		payload, _ := b.Next()
		assert.NotContains(t, string(payload), `"rain"`)
		assert.Contains(t, string(payload), `"seismic"`)
	})

	t.Run("Sequence Is Monotonic", func(t *testing.T) {
		b := newTestBuilder(t, Options{Mode: ModeSensors})
		for want := uint64(0); want < 5; want++ {
			payload, err := b.Next()
			require.NoError(t, err)
			var rec SensorRecord
			require.NoError(t, json.Unmarshal(payload, &rec))
			assert.Equal(t, want, rec.Seq)
		}
		assert.Equal(t, uint64(5), b.Seq())
	})

	t.Run("Rain Totals Never Decrease", func(t *testing.T) {
		b := newTestBuilder(t, Options{Mode: ModeSensors, Rain: true, Period: 10 * time.Minute})
		prevTips, prevTotal := 0, 0.0
		for i := 0; i < 500; i++ {
			payload, _ := b.Next()
			var rec SensorRecord
			require.NoError(t, json.Unmarshal(payload, &rec))
			assert.GreaterOrEqual(t, rec.Rain.BucketTipsTotal, prevTips)
			assert.GreaterOrEqual(t, rec.Rain.RainMMTotal, prevTotal)
			prevTips, prevTotal = rec.Rain.BucketTipsTotal, rec.Rain.RainMMTotal
		}
	})
}

func TestRandomPayload(t *testing.T) {
	b := newTestBuilder(t, Options{Mode: ModeRandom})

	for i := 0; i < 100; i++ {
		payload, err := b.Next()
		require.NoError(t, err)

		var rec RandomRecord
		require.NoError(t, json.Unmarshal(payload, &rec))
		assert.Equal(t, "2026-03-01T09:30:05+00:00", rec.TS)
		assert.Equal(t, uint64(i), rec.Seq)
		assert.GreaterOrEqual(t, rec.Rand, 0)
		assert.LessOrEqual(t, rec.Rand, 1_000_000)
		assert.GreaterOrEqual(t, rec.Val, 0.0)
		assert.LessOrEqual(t, rec.Val, 100.0)
	}
}

func TestTextPayload(t *testing.T) {
	b := newTestBuilder(t, Options{Mode: ModeText})
	pattern := regexp.MustCompile(`^MSG\|(\d{6})\|2026-03-01T09:30:05\+00:00\|(\d{1,4})$`)

	for i := 0; i < 3; i++ {
		payload, err := b.Next()
		require.NoError(t, err)
		m := pattern.FindStringSubmatch(string(payload))
		require.NotNil(t, m, "unexpected payload %q", payload)
		assert.Equal(t, []string{"000000", "000001", "000002"}[i], m[1])
	}
}

func TestNewBuilderErrors(t *testing.T) {
	_, err := NewBuilder(Options{Mode: "binary", Period: time.Second, BucketMM: 0.2})
	assert.Error(t, err)

	_, err = NewBuilder(Options{Mode: ModeSensors, Period: 0, BucketMM: 0.2})
	assert.Error(t, err)

	_, err = NewBuilder(Options{Mode: ModeSensors, Period: time.Second, Rain: true, BucketMM: 0})
	assert.Error(t, err)

	// bucket size is irrelevant outside sensors mode
	_, err = NewBuilder(Options{Mode: ModeText, Period: time.Second})
	assert.NoError(t, err)
}

func TestSameSeedSamePayloads(t *testing.T) {
	a := newTestBuilder(t, Options{Mode: ModeSensors})
	b := newTestBuilder(t, Options{Mode: ModeSensors})
	for i := 0; i < 10; i++ {
		pa, _ := a.Next()
		pb, _ := b.Next()
		assert.Equal(t, string(pa), string(pb))
	}
}
