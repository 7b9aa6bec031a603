package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataloom/analystrt/pkg/models"
)

func TestComputeGapAnalysisFlagsUnderrepresentedClusters(t *testing.T) {
	clustered := models.ClusteredTable{
		ClusterIDs: []int{
			0, 0, 0, 0, 0, 0, 0, 0, // cluster 0: 8
			1, 1, 1, 1, 1, 1, 1, 1, // cluster 1: 8
			2,                      // cluster 2: 1 (underrepresented)
			noiseCluster, noiseCluster, // 2 noise rows
		},
	}

	analysis := computeGapAnalysis("reviews", clustered)

	assert.Equal(t, 19, analysis.TotalRows)
	assert.Contains(t, analysis.UnderrepresentedIDs, 2)
	assert.NotContains(t, analysis.UnderrepresentedIDs, 0)
	assert.InDelta(t, 2.0/19.0, analysis.OutlierRate, 0.001)
	assert.InDelta(t, 1.0, analysis.Top3ConcentrationRatio, 0.001)
}

func TestComputeGapAnalysisHandlesAllNoise(t *testing.T) {
	clustered := models.ClusteredTable{ClusterIDs: []int{noiseCluster, noiseCluster, noiseCluster}}
	analysis := computeGapAnalysis("reviews", clustered)

	assert.Equal(t, 3, analysis.TotalRows)
	assert.Equal(t, 1.0, analysis.OutlierRate)
	assert.Zero(t, analysis.Top3ConcentrationRatio)
	assert.Empty(t, analysis.UnderrepresentedIDs)
}
