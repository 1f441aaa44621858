package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"uncommon.org/progresstrack/internal/modules/student/dto"
	"uncommon.org/progresstrack/internal/modules/student/repository"
	student "uncommon.org/progresstrack/internal/modules/student/service"
	"uncommon.org/progresstrack/pkg/apperror"
	"uncommon.org/progresstrack/pkg/response"
	"uncommon.org/progresstrack/pkg/validator"
)

type StudentHandler struct {
	service student.StudentService
}

func NewStudentHandler(service student.StudentService) *StudentHandler {
	return &StudentHandler{service: service}
}

func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var input dto.StudentInput
	if err := c.ShouldBind(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	image, closeImage, err := imageFromRequest(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeImage()

	created, err := h.service.Create(c.Request.Context(), input, image)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewStudentResponse(created))
}

func (h *StudentHandler) GetAllStudents(c *gin.Context) {
	students, err := h.service.GetAll(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dto.NewStudentListResponse(students)})
}

func (h *StudentHandler) GetStudent(c *gin.Context) {
	found, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewStudentResponse(found))
}

// FilterStudents reads criteria from a JSON body on POST and from the query
// string on GET.
func (h *StudentHandler) FilterStudents(c *gin.Context) {
	var req dto.FilterRequest
	var err error
	if c.Request.Method == http.MethodPost {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBindQuery(&req)
	}
	if err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	students, err := h.service.Filter(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": dto.NewStudentListResponse(students)})
}

func (h *StudentHandler) GetHubs(c *gin.Context) {
	h.distinct(c, repository.FieldHub)
}

func (h *StudentHandler) GetSchools(c *gin.Context) {
	h.distinct(c, repository.FieldSchool)
}

func (h *StudentHandler) GetGenders(c *gin.Context) {
	h.distinct(c, repository.FieldGender)
}

func (h *StudentHandler) distinct(c *gin.Context, field string) {
	values, err := h.service.GetDistinct(c.Request.Context(), field)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": values})
}

func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	var input dto.StudentInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&input); err != nil {
			response.ResponseError(c, validator.ToValidationError(err))
			return
		}
	}

	image, closeImage, err := imageFromRequest(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer closeImage()

	updated, err := h.service.Update(c.Request.Context(), c.Param("id"), input, image)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewStudentResponse(updated))
}

func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "student deleted successfully"})
}

// imageFromRequest opens the optional multipart "image" file. The returned
// close func is always safe to call.
func imageFromRequest(c *gin.Context) (*dto.ImageFile, func(), error) {
	noop := func() {}

	fileHeader, err := c.FormFile("image")
	if err != nil || fileHeader == nil {
		return nil, noop, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, noop, apperror.NewValidationError("image", "could not be read")
	}

	return &dto.ImageFile{
		Reader:   file,
		FileName: fileHeader.Filename,
		Size:     fileHeader.Size,
	}, func() { file.Close() }, nil
}
