package survey

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveykit/internal/errors"
)

// itemBatch builds n recoded responses where each item equals a shared
// latent value plus item-specific noise, clipped to the 1-5 range.
func itemBatch(n int, items []string, noise float64, seed int64) []RecodedResponse {
	rng := rand.New(rand.NewSource(seed))
	resps := make([]RecodedResponse, n)
	for i := range resps {
		latent := 1 + 4*rng.Float64()
		fields := make(map[string]FieldValue, len(items))
		for _, item := range items {
			v := latent + rng.NormFloat64()*noise
			if v < 1 {
				v = 1
			}
			if v > 5 {
				v = 5
			}
			fields[item] = FieldValue{Num: v, Present: true}
		}
		resps[i] = RecodedResponse{ID: fmt.Sprintf("r%d", i), Fields: fields}
	}
	return resps
}

func TestCronbachAlphaConsistentItems(t *testing.T) {
	items := []string{"i1", "i2", "i3", "i4"}
	resps := itemBatch(400, items, 0.3, 1)

	res, err := CronbachAlpha(resps, CompositeIndex{Name: "consistent", Items: items}, 0.7)
	require.NoError(t, err)

	assert.Equal(t, 400, res.N)
	assert.Equal(t, 4, res.Items)
	assert.Greater(t, res.Alpha, 0.8, "near-duplicate items should be highly consistent")
	assert.True(t, res.Acceptable)
}

func TestCronbachAlphaUnrelatedItems(t *testing.T) {
	// Independent items: alpha should be near zero.
	rng := rand.New(rand.NewSource(2))
	items := []string{"i1", "i2", "i3"}
	resps := make([]RecodedResponse, 400)
	for i := range resps {
		fields := make(map[string]FieldValue, len(items))
		for _, item := range items {
			fields[item] = FieldValue{Num: 1 + 4*rng.Float64(), Present: true}
		}
		resps[i] = RecodedResponse{ID: fmt.Sprintf("r%d", i), Fields: fields}
	}

	res, err := CronbachAlpha(resps, CompositeIndex{Name: "unrelated", Items: items}, 0.7)
	require.NoError(t, err)
	assert.Less(t, res.Alpha, 0.3)
	assert.False(t, res.Acceptable)
}

func TestCronbachAlphaListwiseDeletion(t *testing.T) {
	items := []string{"i1", "i2", "i3", "i4"}
	resps := itemBatch(100, items, 0.3, 3)
	// Knock out one item on 20 rows; those rows must not count toward n.
	for i := 0; i < 20; i++ {
		resps[i].Fields["i2"] = FieldValue{}
	}

	res, err := CronbachAlpha(resps, CompositeIndex{Name: "partial", Items: items}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 80, res.N)
}

func TestCronbachAlphaErrors(t *testing.T) {
	items := []string{"i1", "i2", "i3"}

	t.Run("too few complete cases", func(t *testing.T) {
		resps := itemBatch(5, items, 0.3, 4)
		_, err := CronbachAlpha(resps, CompositeIndex{Name: "tiny", Items: items}, 0.7)
		require.Error(t, err)
		assert.Equal(t, errors.CodeInsufficientData, errors.CodeOf(err))
	})

	t.Run("single item", func(t *testing.T) {
		resps := itemBatch(50, []string{"i1"}, 0.3, 5)
		_, err := CronbachAlpha(resps, CompositeIndex{Name: "one", Items: []string{"i1"}}, 0.7)
		require.Error(t, err)
		assert.Equal(t, errors.CodeConfiguration, errors.CodeOf(err))
	})

	t.Run("zero variance", func(t *testing.T) {
		resps := make([]RecodedResponse, 50)
		for i := range resps {
			resps[i] = RecodedResponse{ID: fmt.Sprintf("r%d", i), Fields: map[string]FieldValue{
				"i1": {Num: 5, Present: true},
				"i2": {Num: 5, Present: true},
			}}
		}
		_, err := CronbachAlpha(resps, CompositeIndex{Name: "flat", Items: []string{"i1", "i2"}}, 0.7)
		require.Error(t, err)
		assert.Equal(t, errors.CodeDegenerate, errors.CodeOf(err))
	})
}
