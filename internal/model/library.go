package model

import (
	"strconv"
	"strings"
	"time"

	pkgerrors "bzwops/pkg/errors"
)

// 曲库类型（与 RadioDJ 的 track_type 取值一致）
const (
	TrackMusic = iota
	TrackJingle
	TrackSweeper
	TrackVoiceover
	TrackCommercial
	TrackInternetStream
	TrackOther
	TrackVariableDurationFile
	TrackRequest
	TrackNews
	TrackPlaylistEvent
	TrackFileByDate
	TrackNewestFromFolder
)

// Track 曲库条目 — 对应 tracks
type Track struct {
	TrackID         string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"track_id"`
	Title           string `gorm:"type:varchar(255);not null"                     json:"title"`
	Artist          string `gorm:"type:varchar(255);not null"                     json:"artist"`
	DurationSeconds int    `gorm:"not null"                                       json:"duration_seconds"`
	RadioDJID       int    `gorm:"column:radiodj_id;not null;uniqueIndex"         json:"radiodj_id"`
	TrackType       int    `gorm:"not null"                                       json:"track_type"`
	BaseModel
}

// TableName 指定表名
func (Track) TableName() string { return "tracks" }

// Validate 记录级校验
func (t *Track) Validate() error {
	if t.TrackType < TrackMusic || t.TrackType > TrackNewestFromFolder {
		return pkgerrors.Invalid("track_type", "未知的曲目类型")
	}
	if t.Title == "" {
		return pkgerrors.Invalid("title", "曲目标题不能为空")
	}
	return nil
}

// Episode 节目单集 — 对应 episodes
type Episode struct {
	EpisodeID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"episode_id"`
	ShowID         *string    `gorm:"type:uuid;index"                                json:"show_id,omitempty"`
	FirstBroadcast *time.Time `gorm:"type:date"                                      json:"first_broadcast,omitempty"`
	Title          string     `gorm:"type:varchar(255);not null;default:''"          json:"title"`
	BaseModel

	// 关联
	Show *Show `gorm:"foreignKey:ShowID;references:ShowID" json:"show,omitempty"`
}

// TableName 指定表名
func (Episode) TableName() string { return "episodes" }

// 播出类型
const (
	BroadcastFirstRun = "1ST"
	BroadcastRepeat   = "RPT"
)

// Broadcast 单集播出记录 — 对应 broadcasts
type Broadcast struct {
	BroadcastID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"      json:"broadcast_id"`
	EpisodeID     string    `gorm:"type:uuid;not null;uniqueIndex:uk_broadcast"         json:"episode_id"`
	Date          time.Time `gorm:"column:air_date;type:date;not null;uniqueIndex:uk_broadcast" json:"date"`
	HostCheckedIn *string   `gorm:"type:time"                                           json:"host_checked_in,omitempty"`
	Type          string    `gorm:"type:varchar(3);not null;uniqueIndex:uk_broadcast"   json:"type"`
	BaseModel

	// 关联
	Episode *Episode `gorm:"foreignKey:EpisodeID;references:EpisodeID" json:"episode,omitempty"`
}

// TableName 指定表名
func (Broadcast) TableName() string { return "broadcasts" }

// Validate 仅首播需要主持人签到
func (b *Broadcast) Validate() error {
	switch b.Type {
	case BroadcastFirstRun, BroadcastRepeat:
	default:
		return pkgerrors.Invalid("type", "未知的播出类型")
	}
	if b.HostCheckedIn != nil && b.Type != BroadcastFirstRun {
		return pkgerrors.Invalid("host_checked_in", "重播无需主持人签到")
	}
	return nil
}

// EpisodeTrack 单集曲目（非曲库），元数据均为自由文本 — 对应 episode_tracks
type EpisodeTrack struct {
	EpisodeTrackID   string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"episode_track_id"`
	EpisodeID        string  `gorm:"type:uuid;not null;index"                       json:"episode_id"`
	Sequence         int     `gorm:"not null"                                       json:"sequence"`
	Artist           string  `gorm:"type:varchar(255);not null;default:''"          json:"artist"`
	Title            string  `gorm:"type:varchar(255);not null;default:''"          json:"title"`
	Duration         string  `gorm:"type:varchar(5);not null;default:''"            json:"duration"` // MM:SS
	TrackBroadcastID *string `gorm:"type:uuid"                                      json:"track_broadcast_id,omitempty"`
	BaseModel
}

// TableName 指定表名
func (EpisodeTrack) TableName() string { return "episode_tracks" }

// ParseDuration 解析 "MM:SS"；空白返回 0，无法解析时返回错误
func (et *EpisodeTrack) ParseDuration() (time.Duration, error) {
	s := strings.TrimSpace(et.Duration)
	if s == "" {
		return 0, nil
	}
	mm, ss, ok := strings.Cut(s, ":")
	if !ok {
		return 0, pkgerrors.Invalid("duration", "时长格式应为 MM:SS")
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, pkgerrors.Invalid("duration", "时长格式应为 MM:SS")
	}
	sec, err := strconv.Atoi(ss)
	if err != nil {
		return 0, pkgerrors.Invalid("duration", "时长格式应为 MM:SS")
	}
	return time.Duration(m*60+sec) * time.Second, nil
}

// PlayLogEntry 播出日志 — 对应 play_log_entries
type PlayLogEntry struct {
	PlayLogEntryID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"play_log_entry_id"`
	Start             time.Time `gorm:"not null;index"                                 json:"start"`
	TrackID           *string   `gorm:"type:uuid"                                      json:"track_id,omitempty"`
	NonLibraryTrackID *string   `gorm:"type:uuid"                                      json:"non_library_track_id,omitempty"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Track           *Track        `gorm:"foreignKey:TrackID;references:TrackID"                  json:"track,omitempty"`
	NonLibraryTrack *EpisodeTrack `gorm:"foreignKey:NonLibraryTrackID;references:EpisodeTrackID" json:"non_library_track,omitempty"`
}

// TableName 指定表名
func (PlayLogEntry) TableName() string { return "play_log_entries" }

// Validate 曲库曲目与非曲库曲目必须且只能指定一个
func (p *PlayLogEntry) Validate() error {
	if p.TrackID != nil && p.NonLibraryTrackID != nil {
		return pkgerrors.Invalid("track_id", "曲库曲目与非曲库曲目只能指定一个")
	}
	if p.TrackID == nil && p.NonLibraryTrackID == nil {
		return pkgerrors.Invalid("track_id", "必须指定曲库曲目或非曲库曲目")
	}
	return nil
}

// 评分范围
const (
	RatingTwoThumbsDown = -2
	RatingTwoThumbsUp   = 2
)

// Rating 听众评分 — 对应 ratings
type Rating struct {
	RatingID       string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"rating_id"`
	PlayLogEntryID string `gorm:"type:uuid;not null;index"                       json:"play_log_entry_id"`
	MemberID       string `gorm:"type:uuid;not null"                             json:"member_id"`
	Rating         int    `gorm:"not null"                                       json:"rating"`
	BaseModel
}

// TableName 指定表名
func (Rating) TableName() string { return "ratings" }

// Validate 记录级校验
func (r *Rating) Validate() error {
	if r.Rating < RatingTwoThumbsDown || r.Rating > RatingTwoThumbsUp {
		return pkgerrors.Invalid("rating", "评分必须在 -2 到 2 之间")
	}
	return nil
}
