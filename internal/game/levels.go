package game

import "math"

const MaxLevel = 99

// xpTable[l] is the total XP needed to reach level l+1 (xpTable[0] == 0).
var xpTable = buildXPTable()

func buildXPTable() [MaxLevel]float64 {
	var t [MaxLevel]float64
	points := 0.0
	for l := 1; l < MaxLevel; l++ {
		points += math.Floor(float64(l) + 300*math.Pow(2, float64(l)/7))
		t[l] = math.Floor(points / 4)
	}
	return t
}

// XPForLevel returns the total XP at which level is reached.
func XPForLevel(level int) float64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return xpTable[level-1]
}

// LevelFromXP is monotonic non-decreasing and capped at MaxLevel.
func LevelFromXP(xp float64) int {
	lo, hi := 1, MaxLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if xp >= XPForLevel(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
