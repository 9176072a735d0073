package spotter

import "math"

// Detector tuning constants.
const (
	// MinSensitivity and MaxSensitivity bound the sensitivity setting.
	MinSensitivity = 1
	MaxSensitivity = 10
	// sensitivityStep converts the sensitivity setting into a luminance
	// threshold. Higher sensitivity means a lower threshold, and the
	// mapping is strictly monotonic so "set it as high as possible"
	// stays meaningful in the UI.
	sensitivityStep = 25
	// DefaultMinRegionArea discards connected regions smaller than this
	// many pixels as noise.
	DefaultMinRegionArea = 4
	// DefaultMaxRegionExtent discards regions wider or taller than this
	// many pixels; a real hole is small, a big change is lighting.
	DefaultMaxRegionExtent = 20
	// DifferenceGain amplifies the raw difference for display.
	DifferenceGain = 8
)

// CandidateRegion is one connected set of above-threshold pixels found
// by differencing two composites. It lives for a single detection
// cycle: promoted to a Mark or discarded.
type CandidateRegion struct {
	CentroidX float64 // pixel coordinates in composite space
	CentroidY float64
	Area      int
	Bounds    PixelRect
}

// DetectorParams controls candidate extraction.
type DetectorParams struct {
	Sensitivity int // MinSensitivity..MaxSensitivity
	MinArea     int
	MaxExtent   int
}

// DefaultDetectorParams returns extraction parameters suitable for
// small-bore holes at typical capture resolutions.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		Sensitivity: 8,
		MinArea:     DefaultMinRegionArea,
		MaxExtent:   DefaultMaxRegionExtent,
	}
}

// ThresholdForSensitivity maps the sensitivity setting to the absolute
// luminance difference a pixel must exceed to count as changed.
func ThresholdForSensitivity(sensitivity int) float64 {
	if sensitivity < MinSensitivity {
		sensitivity = MinSensitivity
	}
	if sensitivity > MaxSensitivity {
		sensitivity = MaxSensitivity
	}
	return float64(255 - sensitivityStep*sensitivity)
}

// DetectChanges differences two composites of equal dimensions and
// extracts candidate regions. Above-threshold pixels are grouped with
// 4-connectivity; regions are emitted in row-major order of their first
// scanned pixel, so extraction is deterministic for identical inputs.
func DetectChanges(prev, cur *Composite, params DetectorParams) []CandidateRegion {
	if prev == nil || cur == nil {
		return nil
	}
	if prev.Width != cur.Width || prev.Height != cur.Height {
		return nil
	}
	w, h := cur.Width, cur.Height
	thresh := ThresholdForSensitivity(params.Sensitivity)

	changed := make([]bool, w*h)
	for i := range cur.Pix {
		if math.Abs(float64(cur.Pix[i])-float64(prev.Pix[i])) > thresh {
			changed[i] = true
		}
	}

	minArea := params.MinArea
	if minArea < 1 {
		minArea = 1
	}

	var regions []CandidateRegion
	visited := make([]bool, w*h)
	queue := make([]int, 0, 64)
	for start := 0; start < w*h; start++ {
		if !changed[start] || visited[start] {
			continue
		}

		// Flood fill one connected component.
		queue = queue[:0]
		queue = append(queue, start)
		visited[start] = true
		area := 0
		var sumX, sumY int
		bounds := PixelRect{Left: w, Top: h, Right: -1, Bottom: -1}
		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			x, y := idx%w, idx/w
			area++
			sumX += x
			sumY += y
			if x < bounds.Left {
				bounds.Left = x
			}
			if x > bounds.Right {
				bounds.Right = x
			}
			if y < bounds.Top {
				bounds.Top = y
			}
			if y > bounds.Bottom {
				bounds.Bottom = y
			}
			// 4-connected neighbours.
			if x > 0 && changed[idx-1] && !visited[idx-1] {
				visited[idx-1] = true
				queue = append(queue, idx-1)
			}
			if x < w-1 && changed[idx+1] && !visited[idx+1] {
				visited[idx+1] = true
				queue = append(queue, idx+1)
			}
			if y > 0 && changed[idx-w] && !visited[idx-w] {
				visited[idx-w] = true
				queue = append(queue, idx-w)
			}
			if y < h-1 && changed[idx+w] && !visited[idx+w] {
				visited[idx+w] = true
				queue = append(queue, idx+w)
			}
		}

		if area < minArea {
			continue
		}
		if params.MaxExtent > 0 && (bounds.Width() >= params.MaxExtent || bounds.Height() >= params.MaxExtent) {
			continue
		}
		regions = append(regions, CandidateRegion{
			CentroidX: float64(sumX) / float64(area),
			CentroidY: float64(sumY) / float64(area),
			Area:      area,
			Bounds:    bounds,
		})
	}
	return regions
}

// DifferenceImage returns the amplified absolute difference between two
// composites for the show-difference display. It is presentation only
// and has no effect on candidate extraction.
func DifferenceImage(prev, cur *Composite, gain float64) *Composite {
	if prev == nil || cur == nil || prev.Width != cur.Width || prev.Height != cur.Height {
		return nil
	}
	if gain <= 0 {
		gain = DifferenceGain
	}
	out := &Composite{Width: cur.Width, Height: cur.Height, Pix: make([]float32, len(cur.Pix))}
	for i := range cur.Pix {
		d := math.Abs(float64(cur.Pix[i])-float64(prev.Pix[i])) * gain
		if d > 255 {
			d = 255
		}
		out.Pix[i] = float32(d)
	}
	return out
}
