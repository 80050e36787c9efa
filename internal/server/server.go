package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"taskapi/internal/domain/errors"
	"taskapi/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	GetTasks(ctx context.Context, userID string, completed *bool) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type TaskAPI struct {
	httpSrv   *http.Server
	users     UserRepository
	tasks     TaskRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewTaskAPI(users UserRepository, tasks TaskRepository, cfg *Config) *TaskAPI {
	if users == nil || tasks == nil || cfg == nil {
		return nil
	}

	httpSrv := http.Server{
		Addr: fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port),
	}

	api := TaskAPI{
		httpSrv:   &httpSrv,
		users:     users,
		tasks:     tasks,
		jwtSecret: cfg.JWTSecret,
		tokenTTL:  cfg.TTL(),
	}

	api.configRoutes()

	return &api
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}

	if api.httpSrv.Addr == "" {
		api.httpSrv.Addr = ":8080"
	}

	return api.httpSrv.ListenAndServe()
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	if api.httpSrv == nil {
		return nil
	}
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.Default()
	router.Use(CORS(), GzipRequestDecompress(), GzipResponseCompress())

	router.NoMethod(func(ctx *gin.Context) {
		respondError(ctx, errors.New("Method not allowed", http.StatusMethodNotAllowed))
	})

	router.GET("/health", api.health)

	auth := router.Group("/auth")
	{
		auth.POST("/register", api.register)
		auth.POST("/login", api.login)
	}

	users := router.Group("/users", api.requireAuth())
	{
		users.GET("/me", api.getProfile)
	}

	tasks := router.Group("/tasks", api.requireAuth())
	{
		tasks.POST("", api.createTask)
		tasks.GET("", api.getTasks)
		tasks.GET(":taskID", api.getTaskByID)
		tasks.PUT(":taskID", api.updateTask)
		tasks.DELETE(":taskID", api.deleteTask)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, errors.ErrBadRequest)
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		respondError(ctx, validationErrorToAPIError(err))
		return
	}

	existing, _ := api.users.GetUserByEmail(ctx.Request.Context(), req.Email)
	if existing != nil {
		respondError(ctx, errors.ErrUserExists)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		log.Println("[ERROR] Failed to hash password:", err)
		respondError(ctx, errors.ErrInternalServer)
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: hash,
	}

	if err := api.users.CreateUser(ctx.Request.Context(), &user); err != nil {
		// Two concurrent registrations can both pass the existence check;
		// the unique index turns the loser into a conflict.
		respondError(ctx, err)
		return
	}

	token, err := api.issueToken(&user)
	if err != nil {
		log.Println("[ERROR] Failed to issue token:", err)
		respondError(ctx, errors.ErrInternalServer)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"user":  user,
			"token": token,
		},
	})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, errors.ErrBadRequest)
		return
	}

	// Unknown email and wrong password answer identically so callers
	// cannot probe which addresses are registered.
	user, err := api.users.GetUserByEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		respondError(ctx, errors.ErrInvalidCredentials)
		return
	}

	if !checkPassword(req.Password, user.Password) {
		respondError(ctx, errors.ErrInvalidCredentials)
		return
	}

	token, err := api.issueToken(user)
	if err != nil {
		log.Println("[ERROR] Failed to issue token:", err)
		respondError(ctx, errors.ErrInternalServer)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user":  user,
			"token": token,
		},
	})
}

func (api *TaskAPI) getProfile(ctx *gin.Context) {
	callerID := ctx.GetString(ctxUserIDKey)

	user, err := api.users.GetUserByID(ctx.Request.Context(), callerID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	tasks, err := api.tasks.GetTasks(ctx.Request.Context(), callerID, nil)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":        user.ID,
			"email":     user.Email,
			"createdAt": user.CreatedAt,
			"updatedAt": user.UpdatedAt,
			"tasks":     tasks,
		},
	})
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, errors.ErrBadRequest)
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		respondError(ctx, validationErrorToAPIError(err))
		return
	}

	// Owner always comes from the verified token, never from the body.
	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		Completed:   false,
		UserID:      ctx.GetString(ctxUserIDKey),
	}

	if err := api.tasks.CreateTask(ctx.Request.Context(), &task); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "data": task})
}

func (api *TaskAPI) getTasks(ctx *gin.Context) {
	var completed *bool
	if raw, ok := ctx.GetQuery("completed"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(ctx, errors.ErrInvalidCompletedFilter)
			return
		}
		completed = &v
	}

	tasks, err := api.tasks.GetTasks(ctx.Request.Context(), ctx.GetString(ctxUserIDKey), completed)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": tasks})
}

// guardTask resolves (callerId, taskId) into the task, or the failure the
// caller is allowed to see: absent tasks are 404 for everyone, another
// user's task is 403.
func (api *TaskAPI) guardTask(ctx *gin.Context) (*models.Task, error) {
	task, err := api.tasks.GetTaskByID(ctx.Request.Context(), ctx.Param("taskID"))
	if err != nil {
		return nil, err
	}
	if task.UserID != ctx.GetString(ctxUserIDKey) {
		return nil, errors.ErrTaskForbidden
	}
	return task, nil
}

func (api *TaskAPI) getTaskByID(ctx *gin.Context) {
	task, err := api.guardTask(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	var req models.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, errors.ErrBadRequest)
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		respondError(ctx, validationErrorToAPIError(err))
		return
	}

	task, err := api.guardTask(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = req.Description
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	if err := api.tasks.UpdateTask(ctx.Request.Context(), task.ID, task); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	task, err := api.guardTask(ctx)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if err := api.tasks.DeleteTask(ctx.Request.Context(), task.ID); err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"message": "Task deleted successfully"},
	})
}

// respondError maps a domain failure to the JSON error envelope. Anything
// that is not a typed APIError is an unexpected failure: logged and hidden
// behind a 500.
func respondError(ctx *gin.Context, err error) {
	apiErr, ok := err.(*errors.APIError)
	if !ok {
		log.Println("[ERROR] Unexpected failure:", err)
		apiErr = errors.ErrInternalServer
	}
	ctx.JSON(apiErr.StatusCode, gin.H{"success": false, "error": apiErr})
}

func abortWithError(ctx *gin.Context, apiErr *errors.APIError) {
	ctx.AbortWithStatusJSON(apiErr.StatusCode, gin.H{"success": false, "error": apiErr})
}

func validationErrorToAPIError(err error) *errors.APIError {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Email":
				return errors.ErrInvalidEmail
			case "Password":
				return errors.ErrInvalidPassword
			case "Title":
				return errors.ErrInvalidTitle
			case "Description":
				return errors.ErrInvalidDescription
			}
		}
	}
	return errors.ErrValidationFailed
}
