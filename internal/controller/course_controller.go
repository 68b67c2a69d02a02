package controller

import (
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	Courses  *service.CourseService
	Feedback *service.FeedbackService
}

func NewCourseController(courses *service.CourseService, feedback *service.FeedbackService) *CourseController {
	return &CourseController{Courses: courses, Feedback: feedback}
}

// ListPublished godoc
// @Summary 已发布课程列表
// @Tags 课程
// @Produce json
// @Param search query string false "关键字"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/courses [get]
func (c *CourseController) ListPublished(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	filter := repository.CourseFilter{
		Search: ctx.Query("search"),
		Page:   page,
		Limit:  limit,
	}

	courses, total, err := c.Courses.ListPublished(ctx.Request.Context(), filter)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{
		List:  courses,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (c *CourseController) Get(ctx *gin.Context) {
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	course, err := c.Courses.Get(ctx.Request.Context(), optionalActor(ctx), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

func (c *CourseController) Create(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var in service.CourseInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.Courses.Create(ctx.Request.Context(), actor, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

func (c *CourseController) Update(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var in service.CourseInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.Courses.Update(ctx.Request.Context(), actor, courseID, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// UploadThumbnail godoc
// @Summary 上传课程封面
// @Tags 课程
// @Accept multipart/form-data
// @Param id path int true "课程ID"
// @Param file formData file true "封面图片"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/company/courses/{id}/thumbnail [post]
func (c *CourseController) UploadThumbnail(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	course, err := c.Courses.UploadThumbnail(ctx.Request.Context(), actor, courseID, file)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// UploadLessonVideo godoc
// @Summary 上传课时视频
// @Tags 课程
// @Accept multipart/form-data
// @Param id path int true "课程ID"
// @Param lessonId path string true "课时ID"
// @Param file formData file true "视频文件"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Router /api/company/courses/{id}/lessons/{lessonId}/video [post]
func (c *CourseController) UploadLessonVideo(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	lesson, err := c.Courses.UploadLessonVideo(ctx.Request.Context(), actor, courseID, ctx.Param("lessonId"), file)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

func (c *CourseController) Publish(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	course, err := c.Courses.Publish(ctx.Request.Context(), actor, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

func (c *CourseController) Unpublish(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	course, err := c.Courses.Unpublish(ctx.Request.Context(), actor, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

func (c *CourseController) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	if err := c.Courses.Delete(ctx.Request.Context(), actor, courseID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": courseID})
}

// ListMine 机构自己的课程（含草稿）
func (c *CourseController) ListMine(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courses, err := c.Courses.ListMine(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

func (c *CourseController) Students(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	students, err := c.Courses.Students(ctx.Request.Context(), actor, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, students)
}

func (c *CourseController) SubmitFeedback(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var in service.FeedbackInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	f, err := c.Feedback.Submit(ctx.Request.Context(), actor.ID, courseID, in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, f)
}

func (c *CourseController) ListFeedback(ctx *gin.Context) {
	courseID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	summary, err := c.Feedback.Summary(ctx.Request.Context(), courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
