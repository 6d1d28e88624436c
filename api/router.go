// Package api exposes the client core to the UI shell over a local REST
// facade plus an SSE stream for change notifications.
//
// @title Mealtrack Client API
// @version 1.0
// @description Local facade over the nutrition-tracking client core
// @host localhost:8080
// @BasePath /api
// @schemes http
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "mealtrack/client/api/docs"

	"mealtrack/client/app"
	"mealtrack/client/consumption"
	"mealtrack/client/goals"
	"mealtrack/client/messaging"
	"mealtrack/client/pantry"
	"mealtrack/client/remote"
	"mealtrack/client/types"
)

var allowedOrigins = []string{"http://localhost:3000"}

func init() {
	// Extra shell origins, comma separated.
	if additionalIPs := os.Getenv("ALLOWED_IPS"); additionalIPs != "" {
		for _, ip := range strings.Split(additionalIPs, ",") {
			allowedOrigins = append(allowedOrigins, fmt.Sprintf("http://%s", strings.TrimSpace(ip)))
		}
	}
}

type Router struct {
	engine *gin.Engine
	app    *app.App
	client *remote.Client
}

// NewRouter creates the facade over the wired app and the backend client.
func NewRouter(application *app.App, client *remote.Client) *Router {
	return &Router{
		engine: gin.Default(),
		app:    application,
		client: client,
	}
}

// SetupAndRunApiServer configures all routes and blocks serving on addr.
func (r *Router) SetupAndRunApiServer(addr string) error {
	r.Setup()
	fmt.Println("Running client facade on", addr)
	return r.engine.Run(addr)
}

// Setup registers middleware and routes without starting the server.
func (r *Router) Setup() *gin.Engine {
	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	config.AllowCredentials = true
	r.engine.Use(cors.New(config))

	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api")
	{
		api.POST("/session/login", r.login)
		api.POST("/session/logout", r.logout)
		api.GET("/session/status", r.sessionStatus)
		api.POST("/session/register", r.register)

		api.GET("/sse", setupSSE)

		data := api.Group("/")
		data.Use(r.requireReady)
		{
			data.GET("/catalog/items", r.getItems)
			data.POST("/catalog/foods", r.createFood)
			data.POST("/catalog/meals", r.createMeal)
			data.GET("/catalog/meals/:id/nutrition", r.getMealNutrition)

			data.GET("/log/:date", r.getLogEntries)
			data.GET("/log/:date/totals", r.getLogTotals)
			data.POST("/log", r.addLogEntry)
			data.DELETE("/log/:id", r.removeLogEntry)
			data.POST("/log/navigate", r.navigateLog)

			data.GET("/pantry", r.getPantry)
			data.POST("/pantry/add", r.addToPantry)
			data.POST("/pantry/dispose", r.disposeFromPantry)
			data.POST("/pantry/cook", r.cookMeal)
			data.GET("/pantry/recommendations", r.getRecommendations)

			data.GET("/goals", r.getGoals)
			data.POST("/goals", r.updateGoals)
		}
	}

	return r.engine
}

// requireReady blocks data routes until the initial load completed in full,
// so the shell never renders a partially-initialized view.
func (r *Router) requireReady(c *gin.Context) {
	if !r.app.Ready() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Client data is not loaded"})
		return
	}
	c.Next()
}

// respondError maps the core error taxonomy onto facade status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pantry.ErrInvalidQuantity),
		errors.Is(err, pantry.ErrInsufficient),
		errors.Is(err, consumption.ErrInvalidQuantity),
		errors.Is(err, goals.ErrInvalidTarget):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, remote.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
	case errors.Is(err, remote.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// @Summary Log in
// @Description Exchange username/password for a session
// @Tags session
// @Accept json
// @Produce json
// @Param credentials body types.LoginRequest true "Credentials"
// @Success 200 {object} types.SessionStatus
// @Failure 400 {object} gin.H
// @Failure 502 {object} gin.H
// @Router /session/login [post]
func (r *Router) login(c *gin.Context) {
	var req types.LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	creds, err := r.client.ObtainToken(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := r.app.Session.Login(*creds); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist session"})
		return
	}

	if err := r.app.LoadAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, r.app.Session.Snapshot())
}

// @Summary Log out
// @Tags session
// @Produce json
// @Success 200 {object} gin.H
// @Router /session/logout [post]
func (r *Router) logout(c *gin.Context) {
	r.app.Logout()
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// @Summary Session status
// @Tags session
// @Produce json
// @Success 200 {object} types.SessionStatus
// @Router /session/status [get]
func (r *Router) sessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.app.Session.Snapshot())
}

// @Summary Register a new account
// @Tags session
// @Accept json
// @Produce json
// @Param account body types.RegisterRequest true "Account"
// @Success 201 {object} gin.H
// @Failure 400 {object} gin.H
// @Router /session/register [post]
func (r *Router) register(c *gin.Context) {
	var req types.RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := r.client.Register(c.Request.Context(), req.Email, req.Username, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Account created"})
}

// @Summary List catalog items
// @Tags catalog
// @Produce json
// @Success 200 {array} types.Item
// @Router /catalog/items [get]
func (r *Router) getItems(c *gin.Context) {
	c.JSON(http.StatusOK, r.app.Catalog.Items())
}

// @Summary Create a food item
// @Tags catalog
// @Accept json
// @Produce json
// @Param food body types.CreateFoodRequest true "Food"
// @Success 201 {object} types.Item
// @Failure 400 {object} gin.H
// @Router /catalog/foods [post]
func (r *Router) createFood(c *gin.Context) {
	var req types.CreateFoodRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := r.app.Catalog.CreateFood(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// @Summary Create a meal with its recipe
// @Tags catalog
// @Accept json
// @Produce json
// @Param meal body types.CreateMealRequest true "Meal"
// @Success 201 {object} types.Item
// @Failure 400 {object} gin.H
// @Router /catalog/meals [post]
func (r *Router) createMeal(c *gin.Context) {
	var req types.CreateMealRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	item, err := r.app.Catalog.CreateMeal(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// @Summary Preview meal nutrition per serving
// @Tags catalog
// @Produce json
// @Param id path int true "Meal item ID"
// @Success 200 {object} types.Macros
// @Failure 404 {object} gin.H
// @Router /catalog/meals/{id}/nutrition [get]
func (r *Router) getMealNutrition(c *gin.Context) {
	mealID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	macros, err := r.app.Catalog.MealNutrition(mealID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, macros)
}

// @Summary Log entries for a day
// @Tags log
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {array} types.LogEntry
// @Failure 400 {object} gin.H
// @Router /log/{date} [get]
func (r *Router) getLogEntries(c *gin.Context) {
	date, ok := parseDate(c, c.Param("date"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.app.Log.EntriesForDate(date))
}

// @Summary Macro totals for a day
// @Tags log
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} types.Macros
// @Failure 400 {object} gin.H
// @Router /log/{date}/totals [get]
func (r *Router) getLogTotals(c *gin.Context) {
	date, ok := parseDate(c, c.Param("date"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.app.Log.TotalsForDate(date))
}

// @Summary Record an eaten food
// @Tags log
// @Accept json
// @Produce json
// @Param entry body types.AddLogEntryRequest true "Entry"
// @Success 201 {object} types.LogEntry
// @Failure 400 {object} gin.H
// @Router /log [post]
func (r *Router) addLogEntry(c *gin.Context) {
	var req types.AddLogEntryRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var date time.Time
	if req.Date != "" {
		var ok bool
		if date, ok = parseDate(c, req.Date); !ok {
			return
		}
	}

	entry, err := r.app.Log.AddEntry(c.Request.Context(), req.ItemID, req.Quantity, date)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// @Summary Remove a log entry
// @Tags log
// @Produce json
// @Param id path int true "Action ID"
// @Success 200 {object} gin.H
// @Failure 404 {object} gin.H
// @Router /log/{id} [delete]
func (r *Router) removeLogEntry(c *gin.Context) {
	actionID, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}

	if err := r.app.Log.RemoveEntry(c.Request.Context(), actionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Log entry removed"})
}

// @Summary Shift the selected day
// @Tags log
// @Accept json
// @Produce json
// @Param offset body object true "Offset in days"
// @Success 200 {object} gin.H
// @Router /log/navigate [post]
func (r *Router) navigateLog(c *gin.Context) {
	var req struct {
		OffsetDays int `json:"offset_days"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	selected := r.app.Log.ChangeDate(req.OffsetDays)
	c.JSON(http.StatusOK, gin.H{"selected_date": selected.Format("2006-01-02")})
}

// @Summary Pantry snapshot
// @Tags pantry
// @Produce json
// @Success 200 {object} map[int64]float64
// @Router /pantry [get]
func (r *Router) getPantry(c *gin.Context) {
	c.JSON(http.StatusOK, r.app.Ledger.Snapshot())
}

// @Summary Add to pantry
// @Tags pantry
// @Accept json
// @Produce json
// @Param amount body types.PantryAmountRequest true "Amount"
// @Success 200 {object} gin.H
// @Failure 400 {object} gin.H
// @Router /pantry/add [post]
func (r *Router) addToPantry(c *gin.Context) {
	var req types.PantryAmountRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := r.app.Ledger.Add(c.Request.Context(), req.ItemID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": r.app.Ledger.Quantity(req.ItemID)})
}

// @Summary Dispose from pantry
// @Tags pantry
// @Accept json
// @Produce json
// @Param amount body types.PantryAmountRequest true "Amount"
// @Success 200 {object} gin.H
// @Failure 400 {object} gin.H
// @Router /pantry/dispose [post]
func (r *Router) disposeFromPantry(c *gin.Context) {
	var req types.PantryAmountRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := r.app.Ledger.Dispose(c.Request.Context(), req.ItemID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": r.app.Ledger.Quantity(req.ItemID)})
}

// @Summary Cook a meal
// @Description Consume the meal's ingredients per its recipe, scaled by the adjusted quantities
// @Tags pantry
// @Accept json
// @Produce json
// @Param cook body types.CookMealRequest true "Cook request"
// @Success 200 {object} gin.H
// @Failure 400 {object} gin.H
// @Router /pantry/cook [post]
func (r *Router) cookMeal(c *gin.Context) {
	var req types.CookMealRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := r.app.Ledger.CookMeal(c.Request.Context(), req.MealID, req.Quantities); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Meal cooked"})
}

// @Summary Meal recommendations
// @Tags pantry
// @Produce json
// @Success 200 {object} types.RecommendationsResponse
// @Failure 502 {object} gin.H
// @Router /pantry/recommendations [get]
func (r *Router) getRecommendations(c *gin.Context) {
	recommendations, err := r.app.Ledger.Recommendations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recommendations)
}

// @Summary Current goals
// @Tags goals
// @Produce json
// @Success 200 {object} types.Goal
// @Router /goals [get]
func (r *Router) getGoals(c *gin.Context) {
	c.JSON(http.StatusOK, r.app.Goals.Current())
}

// @Summary Update goals
// @Tags goals
// @Accept json
// @Produce json
// @Param goals body types.Goal true "Goals"
// @Success 200 {object} types.Goal
// @Failure 400 {object} gin.H
// @Router /goals [post]
func (r *Router) updateGoals(c *gin.Context) {
	var goal types.Goal
	if err := c.BindJSON(&goal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	saved, err := r.app.Goals.Update(c.Request.Context(), goal)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, saved)
}

func parseDate(c *gin.Context, value string) (time.Time, bool) {
	date, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format: use YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

func parseID(c *gin.Context, value string) (int64, bool) {
	var id int64
	if _, err := fmt.Sscanf(value, "%d", &id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func setupSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	origin := c.GetHeader("Origin")
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			break
		}
	}

	// Buffered so a burst of updates does not drop the client.
	clientChan := make(chan string, 10)
	messaging.AddSSEClient(clientChan)

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-clientChan:
			if !ok {
				return false
			}
			c.SSEvent("message", msg)
			return true
		case <-c.Request.Context().Done():
			messaging.RemoveSSEClient(clientChan)
			return false
		}
	})
}
