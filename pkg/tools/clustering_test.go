package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineDistanceIdenticalVectorsIsZero(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 0, cosineDistance(v, v), 1e-6)
}

func TestCosineDistanceOrthogonalVectorsIsOne(t *testing.T) {
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestDensityClusterGroupsTightPointsAndIsolatesOutlier(t *testing.T) {
	cluster := []float32{1, 0, 0}
	outlier := []float32{0, 0, 1}
	vecs := [][]float32{cluster, cluster, cluster, cluster, outlier}

	labels := densityCluster(vecs, clusterEps, clusterMinPts)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[0], labels[3])
	assert.NotEqual(t, noiseCluster, labels[0])
	assert.Equal(t, noiseCluster, labels[4])
}

func TestSummarizeClusterIDsCountsNoiseSeparately(t *testing.T) {
	clusters, noise := summarizeClusterIDs([]int{0, 0, 1, noiseCluster})
	assert.Equal(t, 2, clusters)
	assert.Equal(t, 1, noise)
}
