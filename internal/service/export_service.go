package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bzwops/config"
	"bzwops/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportTimeAccount 导出成员的工时账户对账单
	ExportTimeAccount(ctx context.Context, memberID string) (*bytes.Buffer, string, error)
	// ExportUnderwriting 导出赞助协议的播出记录
	ExportUnderwriting(ctx context.Context, agreementID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, loc: cfg.Tasks.Location(), logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportTimeAccount 工时账户对账单
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 标题行：成员姓名
//   - 表头：时间 | 变动（小时）| 余额 | 说明
//   - 末行：当前余额

func (s *exportService) ExportTimeAccount(ctx context.Context, memberID string) (*bytes.Buffer, string, error) {
	member, err := s.repo.Member.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrMemberNotFound
		}
		s.logger.Error("查询成员失败", zap.String("id", memberID), zap.Error(err))
		return nil, "", err
	}
	worker, err := s.repo.Worker.GetByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrWorkerNotFound
		}
		s.logger.Error("查询志愿者档案失败", zap.String("member_id", memberID), zap.Error(err))
		return nil, "", err
	}
	entries, err := s.repo.TimeAccount.ListByWorker(ctx, worker.WorkerID)
	if err != nil {
		s.logger.Error("查询工时流水失败", zap.String("worker_id", worker.WorkerID), zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "工时账户"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 18)
	f.SetColWidth(sheetName, "B", "C", 12)
	f.SetColWidth(sheetName, "D", "D", 40)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 工时账户", member.FriendlyName()))
	f.MergeCell(sheetName, "A1", "D1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	for i, h := range []string{"时间", "变动（小时）", "余额", "说明"} {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}

	// 数据行，流水按时间升序，余额逐行累计
	row = 3
	var balance float64
	for _, e := range entries {
		change, _ := e.Change.Float64()
		balance += change
		f.SetCellValue(sheetName, cell("A", row), e.When.In(s.loc).Format("2006-01-02 15:04"))
		f.SetCellValue(sheetName, cell("B", row), change)
		f.SetCellValue(sheetName, cell("C", row), balance)
		f.SetCellValue(sheetName, cell("D", row), e.Explanation)
		row++
	}
	f.SetCellValue(sheetName, cell("A", row), "当前余额")
	f.SetCellValue(sheetName, cell("C", row), balance)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("工时账户_%s.xlsx", member.Username)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportUnderwriting 赞助播出记录
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 标题行：赞助方 + 有效期
//   - 表头：播出时间 | 星期 | 约定时刻
//   - 末行：已播出 / 售出数量

func (s *exportService) ExportUnderwriting(ctx context.Context, agreementID string) (*bytes.Buffer, string, error) {
	a, err := s.repo.Underwriting.GetAgreement(ctx, agreementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAgreementNotFound
		}
		s.logger.Error("查询赞助协议失败", zap.String("id", agreementID), zap.Error(err))
		return nil, "", err
	}
	broadcasts, err := s.repo.Underwriting.ListBroadcasts(ctx, agreementID)
	if err != nil {
		s.logger.Error("查询赞助播出记录失败", zap.String("agreement_id", agreementID), zap.Error(err))
		return nil, "", err
	}

	scheduleTimes := make(map[string]string, len(a.Schedules))
	for _, sch := range a.Schedules {
		scheduleTimes[sch.ScheduleID] = sch.Time
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "播出记录"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "C", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s（%s ~ %s）",
		a.Sponsor, a.StartDate.Format(dateLayout), a.EndDate.Format(dateLayout)))
	f.MergeCell(sheetName, "A1", "C1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	row := 2
	for i, h := range []string{"播出时间", "星期", "约定时刻"} {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}

	row = 3
	for _, b := range broadcasts {
		when := b.WhenRead.In(s.loc)
		f.SetCellValue(sheetName, cell("A", row), when.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, cell("B", row), when.Weekday().String())
		slot := "-"
		if b.ScheduleID != nil {
			if t, ok := scheduleTimes[*b.ScheduleID]; ok {
				slot = t
			}
		}
		f.SetCellValue(sheetName, cell("C", row), slot)
		row++
	}
	f.SetCellValue(sheetName, cell("A", row), "已播出 / 售出")
	f.SetCellValue(sheetName, cell("B", row), fmt.Sprintf("%d / %d", len(broadcasts), a.QtySold))

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("赞助播出_%s.xlsx", a.Sponsor)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
