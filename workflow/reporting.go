package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportService is read-only aggregation over the transaction ledger and the
// production log. It never writes.
type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

const stockoutWindowDays = 30

type ProductionSummaryResponse struct {
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	TotalRuns        int64           `json:"total_runs"`
	TotalUnits       int64           `json:"total_units"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	AvgUnitsPerRun   decimal.Decimal `json:"avg_units_per_run"`
}

type MaterialConsumptionResponse struct {
	MaterialId       int             `json:"material_id"`
	MaterialName     string          `json:"material_name"`
	Unit             string          `json:"unit"`
	TotalConsumed    decimal.Decimal `json:"total_consumed"`
	TransactionCount int64           `json:"transaction_count"`
	TotalCost        decimal.Decimal `json:"total_cost"`
}

type StockoutPredictionResponse struct {
	MaterialId          int             `json:"material_id"`
	MaterialName        string          `json:"material_name"`
	CurrentStock        decimal.Decimal `json:"current_stock"`
	HasTrend            bool            `json:"has_trend"`
	AvgDailyConsumption decimal.Decimal `json:"avg_daily_consumption"`
	DaysRemaining       decimal.Decimal `json:"days_remaining"`
	EstimatedStockout   *time.Time      `json:"estimated_stockout,omitempty"`
}

// ProductionSummary aggregates non-deleted runs in the date range. Cost is
// computed from the unit price stored on each Production ledger row, so the
// figure does not move when a material is repriced later.
func (s *ReportService) ProductionSummary(ctx context.Context, from time.Time, to time.Time) (*ProductionSummaryResponse, error) {
	from = utils.StartOfDayUTC(from)
	to = utils.EndOfDayUTC(to)
	if to.Before(from) {
		return nil, utils.ValidationErrorf("end date is before start date")
	}

	type runAgg struct {
		TotalRuns  int64
		TotalUnits int64
	}
	var runs runAgg
	if err := s.db.WithContext(ctx).Raw(`
		SELECT
		  COUNT(*) AS total_runs,
		  COALESCE(SUM(units_produced), 0) AS total_units
		FROM production_runs
		WHERE is_deleted = 0
		  AND run_date BETWEEN ? AND ?
	`, from, to).Scan(&runs).Error; err != nil {
		return nil, err
	}

	var totalCost decimal.Decimal
	if err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(ABS(mt.qty_change) * mt.unit_price), 0)
		FROM material_transactions mt
		JOIN production_runs pr ON pr.id = mt.production_run_id
		WHERE mt.transaction_type = ?
		  AND pr.is_deleted = 0
		  AND pr.run_date BETWEEN ? AND ?
	`, models.TransactionTypeProduction, from, to).Scan(&totalCost).Error; err != nil {
		return nil, err
	}

	resp := &ProductionSummaryResponse{
		StartDate:  from,
		EndDate:    to,
		TotalRuns:  runs.TotalRuns,
		TotalUnits: runs.TotalUnits,
		TotalCost:  totalCost,
	}
	if runs.TotalRuns > 0 {
		resp.AvgUnitsPerRun = decimal.NewFromInt(runs.TotalUnits).
			Div(decimal.NewFromInt(runs.TotalRuns)).Round(2)
	}
	return resp, nil
}

// MaterialConsumption sums what one material's production deductions took in
// a date range, priced at transaction time.
func (s *ReportService) MaterialConsumption(ctx context.Context, materialId int, from time.Time, to time.Time) (*MaterialConsumptionResponse, error) {
	from = utils.StartOfDayUTC(from)
	to = utils.EndOfDayUTC(to)
	if to.Before(from) {
		return nil, utils.ValidationErrorf("end date is before start date")
	}

	var material models.RawMaterial
	err := s.db.WithContext(ctx).First(&material, materialId).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.NotFoundErrorf("material %d not found", materialId)
	}
	if err != nil {
		return nil, err
	}

	type consumptionAgg struct {
		TotalConsumed    decimal.Decimal
		TransactionCount int64
		TotalCost        decimal.Decimal
	}
	var agg consumptionAgg
	if err := s.db.WithContext(ctx).Raw(`
		SELECT
		  COALESCE(SUM(ABS(mt.qty_change)), 0) AS total_consumed,
		  COUNT(*) AS transaction_count,
		  COALESCE(SUM(ABS(mt.qty_change) * mt.unit_price), 0) AS total_cost
		FROM material_transactions mt
		JOIN production_runs pr ON pr.id = mt.production_run_id
		WHERE mt.material_id = ?
		  AND mt.transaction_type = ?
		  AND pr.is_deleted = 0
		  AND mt.created_at BETWEEN ? AND ?
	`, materialId, models.TransactionTypeProduction, from, to).Scan(&agg).Error; err != nil {
		return nil, err
	}

	return &MaterialConsumptionResponse{
		MaterialId:       material.ID,
		MaterialName:     material.Name,
		Unit:             material.Unit,
		TotalConsumed:    agg.TotalConsumed,
		TransactionCount: agg.TransactionCount,
		TotalCost:        agg.TotalCost,
	}, nil
}

// StockoutPrediction extrapolates linearly from the trailing 30 days of
// production consumption. Deductions belonging to undone runs do not count
// toward the trend. A zero trend is reported as HasTrend=false, never as a
// division error.
func (s *ReportService) StockoutPrediction(ctx context.Context, materialId int) (*StockoutPredictionResponse, error) {
	var material models.RawMaterial
	err := s.db.WithContext(ctx).First(&material, materialId).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.NotFoundErrorf("material %d not found", materialId)
	}
	if err != nil {
		return nil, err
	}

	windowStart := time.Now().UTC().AddDate(0, 0, -stockoutWindowDays)
	var totalConsumed decimal.Decimal
	if err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(ABS(mt.qty_change)), 0)
		FROM material_transactions mt
		JOIN production_runs pr ON pr.id = mt.production_run_id
		WHERE mt.material_id = ?
		  AND mt.transaction_type = ?
		  AND pr.is_deleted = 0
		  AND mt.created_at >= ?
	`, materialId, models.TransactionTypeProduction, windowStart).Scan(&totalConsumed).Error; err != nil {
		return nil, err
	}

	resp := &StockoutPredictionResponse{
		MaterialId:   material.ID,
		MaterialName: material.Name,
		CurrentStock: material.Quantity,
	}

	avgDaily, daysRemaining, ok := PredictDaysRemaining(material.Quantity, totalConsumed, stockoutWindowDays)
	if !ok {
		return resp, nil
	}

	resp.HasTrend = true
	resp.AvgDailyConsumption = avgDaily
	resp.DaysRemaining = daysRemaining
	stockout := time.Now().UTC().Add(time.Duration(daysRemaining.InexactFloat64() * 24 * float64(time.Hour)))
	resp.EstimatedStockout = &stockout
	return resp, nil
}

// PredictDaysRemaining is the pure extrapolation: average the consumption
// over the window and divide the current stock by it. ok is false when there
// is no consumption trend to extrapolate from.
func PredictDaysRemaining(currentStock decimal.Decimal, totalConsumed decimal.Decimal, windowDays int) (avgDaily decimal.Decimal, daysRemaining decimal.Decimal, ok bool) {
	if windowDays <= 0 || !totalConsumed.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	avgDaily = totalConsumed.Div(decimal.NewFromInt(int64(windowDays))).Round(4)
	if avgDaily.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	daysRemaining = currentStock.Div(avgDaily).Round(1)
	return avgDaily, daysRemaining, true
}

// TransactionsInRange returns the ledger rows for a date range, oldest first.
// Export collaborators consume this to build their files; formatting is theirs.
func (s *ReportService) TransactionsInRange(ctx context.Context, from time.Time, to time.Time) ([]models.MaterialTransaction, error) {
	from = utils.StartOfDayUTC(from)
	to = utils.EndOfDayUTC(to)
	if to.Before(from) {
		return nil, utils.ValidationErrorf("end date is before start date")
	}
	var txns []models.MaterialTransaction
	if err := s.db.WithContext(ctx).
		Preload("Material").
		Where("created_at BETWEEN ? AND ?", from, to).
		Order("created_at, id").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ProductionsInRange returns every run in the range, including undone ones
// (is_deleted is part of the record), oldest first.
func (s *ReportService) ProductionsInRange(ctx context.Context, from time.Time, to time.Time) ([]models.ProductionRun, error) {
	from = utils.StartOfDayUTC(from)
	to = utils.EndOfDayUTC(to)
	if to.Before(from) {
		return nil, utils.ValidationErrorf("end date is before start date")
	}
	var runs []models.ProductionRun
	if err := s.db.WithContext(ctx).
		Where("run_date BETWEEN ? AND ?", from, to).
		Order("run_date, id").
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
