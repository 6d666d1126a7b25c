// Package recurrence 提供与存储无关的日期规则匹配：
// 月内第 N 个星期几、固定间隔天数，以及跨午夜的时段判断。
// 任务模板、节目时段与赞助播出计划共用这里的规则。
package recurrence

import (
	"fmt"
	"time"
)

// Pattern 星期 × 月内序数矩阵
// 例如 "每月第一、第三个周四" 或 "每周一"
type Pattern struct {
	Days [7]bool // 以 time.Weekday 为下标，Sunday=0

	Every  bool
	First  bool
	Second bool
	Third  bool
	Fourth bool
	Last   bool // 当月最后一个该星期几，即第 4 或第 5 个
}

// OnWeekday 判断星期几是否被选中
func (p Pattern) OnWeekday(wd time.Weekday) bool {
	return p.Days[wd]
}

// AnyDay 是否至少选中一个星期几
func (p Pattern) AnyDay() bool {
	for _, on := range p.Days {
		if on {
			return true
		}
	}
	return false
}

// AnyOrdinal 是否选中了任一月内序数（不含 Every）
func (p Pattern) AnyOrdinal() bool {
	return p.First || p.Second || p.Third || p.Fourth || p.Last
}

// Ordinal 返回 d 是当月第几个同星期几（1-5）
func Ordinal(d time.Time) int {
	return (d.Day()-1)/7 + 1
}

// Matches 判断日期是否符合规则
func (p Pattern) Matches(d time.Time) bool {
	if !p.OnWeekday(d.Weekday()) {
		return false
	}
	if p.Every {
		return true
	}

	switch Ordinal(d) {
	case 1:
		return p.First
	case 2:
		return p.Second
	case 3:
		return p.Third
	case 4:
		return p.Fourth || p.Last
	case 5:
		return p.Last
	}
	return false
}

// DaysString 以 "MTWTFSS" 形式展示选中的星期，未选中用 ◌ 占位
func (p Pattern) DaysString() string {
	const blank = "◌"
	letters := []struct {
		wd     time.Weekday
		letter string
	}{
		{time.Monday, "M"}, {time.Tuesday, "T"}, {time.Wednesday, "W"},
		{time.Thursday, "T"}, {time.Friday, "F"}, {time.Saturday, "S"}, {time.Sunday, "S"},
	}
	out := ""
	for _, l := range letters {
		if p.Days[l.wd] {
			out += l.letter
		} else {
			out += blank
		}
	}
	return out
}

// MatchesInterval 固定间隔规则：从 start 起每 intervalDays 天一次
func MatchesInterval(start time.Time, intervalDays int, d time.Time) bool {
	if intervalDays <= 0 {
		return false
	}
	diff := DaysBetween(start, d)
	return diff >= 0 && diff%intervalDays == 0
}

// ── 日期辅助 ──

// Date 截断到所在时区的零点
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween 返回 to - from 的自然日差（忽略时分秒与夏令时）
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// SameDay 判断两个时间是否落在同一自然日
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ── 时刻与时段 ──

// ParseClock 解析 "15:04" 或 "15:04:05"（PostgreSQL time 列的文本形式），返回当日偏移
func ParseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("无法解析时刻 %q", s)
}

// ClockOf 返回 t 在当日的偏移
func ClockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

// FormatClock 将当日偏移格式化为 "15:04"
func FormatClock(c time.Duration) string {
	c %= 24 * time.Hour
	return fmt.Sprintf("%02d:%02d", int(c.Hours()), int(c.Minutes())%60)
}

// TimeInSpan 判断时刻 t 是否落在 [start, start+dur) 内，允许跨越午夜
func TimeInSpan(t, start, dur time.Duration) bool {
	const day = 24 * time.Hour
	if dur <= 0 {
		return false
	}
	if dur >= day {
		return true
	}
	end := start + dur
	if end <= day {
		return t >= start && t < end
	}
	return t >= start || t < end-day
}
