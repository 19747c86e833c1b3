package domain

import (
	"math"
	"time"
)

const (
	earthRadiusKM = 6371.0
	// ImpossibleSpeedKMH 连续定位点之间超过该速度视为位置伪造
	ImpossibleSpeedKMH = 900.0
	// FarFromHistoryKM 距离历史活动范围超过该值视为弱不一致
	FarFromHistoryKM = 500.0
)

// HaversineKM 两点间大圆距离（公里）
func HaversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// LocationConsistency 对当前位置与历史轨迹打分，1 完全一致，0 判定为伪造。
// 无历史或无当前位置时返回 1（中性，不惩罚新用户）。
func LocationConsistency(current *LocationPoint, history []LocationPoint) float64 {
	if current == nil || len(history) == 0 {
		return 1
	}

	// 移动速度不可能：与最近一次定位比较
	last := history[0]
	for _, p := range history {
		if p.RecordedAt.After(last.RecordedAt) {
			last = p
		}
	}
	elapsed := current.RecordedAt.Sub(last.RecordedAt)
	if elapsed > 0 {
		distKM := HaversineKM(current.Lat, current.Lng, last.Lat, last.Lng)
		speed := distKM / elapsed.Hours()
		if speed > ImpossibleSpeedKMH {
			return 0
		}
	}

	// 与历史活动中心的距离
	var sumLat, sumLng float64
	for _, p := range history {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	centroidLat := sumLat / float64(len(history))
	centroidLng := sumLng / float64(len(history))
	if HaversineKM(current.Lat, current.Lng, centroidLat, centroidLng) > FarFromHistoryKM {
		return 0.5
	}
	return 1
}

// IntervalsRegular 判断上传时间间隔是否呈机械性规律
func IntervalsRegular(times []time.Time) bool {
	if len(times) < RegularIntervalMinUploads {
		return false
	}
	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, times[i].Sub(times[i-1]).Seconds())
	}
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))
	var variance float64
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	variance /= float64(len(gaps))
	return math.Sqrt(variance) < RegularIntervalStdDev.Seconds()
}
