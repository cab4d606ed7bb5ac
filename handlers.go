package main

import (
	"net/http"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func init() {
	// Teach the binding validator about decimal.Decimal so numeric tags like
	// required/gt work on quantity fields.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})
	}
}

type apiServer struct {
	inventory  *workflow.InventoryService
	production *workflow.ProductionService
	reports    *workflow.ReportService
	auth       *workflow.AuthService
	logger     *logrus.Logger
}

// writeError maps the workflow error kinds to HTTP statuses. Insufficient
// stock is 422 with the full deficit list so the frontend can show every
// shortage at once.
func (api *apiServer) writeError(c *gin.Context, err error) {
	var stockErr *utils.InsufficientStockError
	switch {
	case utils.AsInsufficientStock(err, &stockErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    stockErr.Error(),
			"deficits": stockErr.Deficits,
		})
	case utils.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case utils.IsConcurrencyConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// dateRange reads from/to query params (YYYY-MM-DD). Missing values default
// to the last 30 days.
func dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := c.Query("from"); v != "" {
		parsed, err := utils.ParseDateString(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, expected YYYY-MM-DD"})
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := utils.ParseDateString(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, expected YYYY-MM-DD"})
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	return from, to, true
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (api *apiServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	info, err := api.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if utils.IsValidation(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (api *apiServer) createUser(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := api.auth.CreateUser(c.Request.Context(), &input)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type materialView struct {
	models.RawMaterial
	StockLevel models.StockLevel `json:"stock_level"`
}

func toMaterialView(m models.RawMaterial) materialView {
	return materialView{RawMaterial: m, StockLevel: m.StockLevel()}
}

func (api *apiServer) listMaterials(c *gin.Context) {
	materials, err := api.inventory.ListMaterials(c.Request.Context())
	if err != nil {
		api.writeError(c, err)
		return
	}
	views := make([]materialView, 0, len(materials))
	for _, m := range materials {
		views = append(views, toMaterialView(m))
	}
	c.JSON(http.StatusOK, views)
}

func (api *apiServer) getMaterial(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	material, err := api.inventory.GetMaterial(c.Request.Context(), id)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMaterialView(*material))
}

func (api *apiServer) createMaterial(c *gin.Context) {
	var input models.NewRawMaterial
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	material, err := api.inventory.CreateMaterial(c.Request.Context(), &input)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMaterialView(*material))
}

func (api *apiServer) updateMaterial(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.UpdateRawMaterial
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	material, err := api.inventory.UpdateMaterial(c.Request.Context(), id, &input)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMaterialView(*material))
}

type restockRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Notes  string          `json:"notes"`
}

func (api *apiServer) restockMaterial(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	txn, err := api.inventory.Restock(c.Request.Context(), id, req.Amount, req.Notes)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

type adjustRequest struct {
	Delta decimal.Decimal `json:"delta" binding:"required"`
	Notes string          `json:"notes"`
}

func (api *apiServer) adjustMaterial(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	txn, err := api.inventory.Adjust(c.Request.Context(), id, req.Delta, req.Notes)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (api *apiServer) materialTransactions(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	txns, err := api.inventory.MaterialTransactions(c.Request.Context(), id, limit)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (api *apiServer) lowStock(c *gin.Context) {
	var threshold *decimal.Decimal
	if v := c.Query("threshold"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
			return
		}
		threshold = &parsed
	}
	materials, err := api.inventory.LowStockMaterials(c.Request.Context(), threshold)
	if err != nil {
		api.writeError(c, err)
		return
	}
	views := make([]materialView, 0, len(materials))
	for _, m := range materials {
		views = append(views, toMaterialView(m))
	}
	c.JSON(http.StatusOK, views)
}

func (api *apiServer) getRecipe(c *gin.Context) {
	recipe, err := api.inventory.ActiveRecipe(c.Request.Context())
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (api *apiServer) setRecipeRequirement(c *gin.Context) {
	var input models.NewRecipeRequirement
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	item, err := api.inventory.SetRequirement(c.Request.Context(), &input)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (api *apiServer) logProduction(c *gin.Context) {
	var input models.NewProductionRun
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	run, err := api.production.LogProduction(c.Request.Context(), &input)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (api *apiServer) getProduction(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	run, err := api.production.GetRun(c.Request.Context(), id)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (api *apiServer) productionTransactions(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	txns, err := api.production.RunTransactions(c.Request.Context(), id)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (api *apiServer) undoProduction(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	run, err := api.production.UndoProduction(c.Request.Context(), id)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (api *apiServer) productionSummary(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	summary, err := api.reports.ProductionSummary(c.Request.Context(), from, to)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (api *apiServer) materialConsumption(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	report, err := api.reports.MaterialConsumption(c.Request.Context(), id, from, to)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (api *apiServer) stockoutPrediction(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	prediction, err := api.reports.StockoutPrediction(c.Request.Context(), id)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (api *apiServer) transactionsInRange(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	txns, err := api.reports.TransactionsInRange(c.Request.Context(), from, to)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (api *apiServer) productionsInRange(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	runs, err := api.reports.ProductionsInRange(c.Request.Context(), from, to)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}
