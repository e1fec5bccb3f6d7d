package lmstest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userKey = "lmstest.user"

func (s *Server) register(e *gin.Engine) {
	api := e.Group("/api")

	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/register", s.handleRegister)

	authed := api.Group("", s.requireAuth)
	authed.GET("/course", s.handleListCourses)
	authed.GET("/course/GetInstructorCourses", s.handleInstructorCourses)
	authed.GET("/course/:id", s.handleGetCourse)
	authed.POST("/course", s.handleCreateCourse)
	authed.PUT("/course/:id", s.handleUpdateCourse)
	authed.DELETE("/course/:id", s.handleDeleteCourse)

	authed.POST("/enrollment/enroll/:courseId", s.handleEnroll)
	authed.DELETE("/Enrollment/Unenroll/:courseId", s.handleUnenroll)

	authed.GET("/Assessment/GetStudentAssessments", s.handleStudentAssessments)
	authed.GET("/Assessment/course/:courseId", s.handleCourseAssessments)
	authed.GET("/Assessment/:id", s.handleGetAssessment)
	authed.POST("/Assessment/upload-questions", s.handleUploadQuestions)
	authed.POST("/Assessment/Submit", s.handleSubmit)

	authed.GET("/Result/user", s.handleUserResults)
}

func (s *Server) requireAuth(c *gin.Context) {
	const prefix = "Bearer "

	h := c.GetHeader("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
		return
	}

	u, ok := s.parseToken(h[len(prefix):])
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
		return
	}

	c.Set(userKey, u)
	c.Next()
}

func currentUser(c *gin.Context) *user {
	return c.MustGet(userKey).(*user)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"Email"`
		Password string `json:"Password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"title": "invalid login payload"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()

	if !ok || u.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid email or password"})
		return
	}

	token, err := s.issueToken(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "token signing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"name":  u.Name,
			"email": u.Email,
			"role":  u.Role,
		},
	})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Name     string `json:"Name"`
		Email    string `json:"Email"`
		Password string `json:"Password"`
		Role     int    `json:"Role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"title": "invalid registration payload"})
		return
	}

	missing := gin.H{}
	if req.Email == "" {
		missing["Email"] = []string{"The Email field is required."}
	}
	if req.Password == "" {
		missing["Password"] = []string{"The Password field is required."}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": missing,
			"title":  "One or more validation errors occurred.",
		})
		return
	}

	s.mu.Lock()
	_, exists := s.users[req.Email]
	s.mu.Unlock()
	if exists {
		c.JSON(http.StatusConflict, gin.H{"message": "email already registered"})
		return
	}

	role := "Student"
	if req.Role == 1 {
		role = "Instructor"
	}
	s.SeedUser(req.Name, req.Email, req.Password, role)

	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// courseJSON serializes a course in the casing that course was seeded
// with, so clients see both variants in one listing.
func (s *Server) courseJSON(cs *storedCourse, u *user) gin.H {
	enrolled := s.enrollments[u.ID][cs.ID]

	if cs.PascalCase {
		return gin.H{
			"CourseId":       cs.ID,
			"Title":          cs.Title,
			"Description":    cs.Description,
			"InstructorName": cs.InstructorName,
			"MediaUrl":       cs.MediaURL,
			"IsEnrolled":     enrolled,
		}
	}

	return gin.H{
		"courseId":       cs.ID,
		"title":          cs.Title,
		"description":    cs.Description,
		"instructorName": cs.InstructorName,
		"mediaUrl":       cs.MediaURL,
		"isEnrolled":     enrolled,
	}
}

func (s *Server) handleListCourses(c *gin.Context) {
	u := currentUser(c)

	s.mu.Lock()
	data := make([]gin.H, 0, len(s.courses))
	for _, cs := range s.courses {
		data = append(data, s.courseJSON(cs, u))
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "message": nil})
}

func (s *Server) handleInstructorCourses(c *gin.Context) {
	u := currentUser(c)

	s.mu.Lock()
	data := make([]gin.H, 0)
	for _, cs := range s.courses {
		if cs.InstructorID == u.ID || cs.InstructorName == u.Name {
			data = append(data, s.courseJSON(cs, u))
		}
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "message": nil})
}

func (s *Server) handleGetCourse(c *gin.Context) {
	u := currentUser(c)

	s.mu.Lock()
	cs, ok := s.courseByID(c.Param("id"))
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "course not found"})
		return
	}
	payload := s.courseJSON(cs, u)
	s.mu.Unlock()

	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleCreateCourse(c *gin.Context) {
	u := currentUser(c)
	if u.Role != "Instructor" {
		c.JSON(http.StatusForbidden, gin.H{"message": "instructor role required"})
		return
	}

	title := c.PostForm("title")
	description := c.PostForm("description")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": gin.H{"Title": []string{"The Title field is required."}},
			"title":  "One or more validation errors occurred.",
		})
		return
	}

	mediaURL := ""
	if f, err := c.FormFile("mediaFile"); err == nil {
		mediaURL = "/media/" + f.Filename
	}

	s.mu.Lock()
	cs := &storedCourse{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    description,
		InstructorID:   u.ID,
		InstructorName: u.Name,
		MediaURL:       mediaURL,
	}
	s.courses = append(s.courses, cs)
	payload := s.courseJSON(cs, u)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, payload)
}

func (s *Server) handleUpdateCourse(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"title": "invalid course payload"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.courseByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "course not found"})
		return
	}

	cs.Title = req.Title
	cs.Description = req.Description
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteCourse(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cs := range s.courses {
		if cs.ID == c.Param("id") {
			s.courses = append(s.courses[:i], s.courses[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"message": "course not found"})
}

func (s *Server) handleEnroll(c *gin.Context) {
	u := currentUser(c)
	courseID := c.Param("courseId")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courseByID(courseID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "course not found"})
		return
	}

	if s.enrollments[u.ID][courseID] {
		c.JSON(http.StatusConflict, gin.H{"message": "you are already enrolled in this course"})
		return
	}

	if s.enrollments[u.ID] == nil {
		s.enrollments[u.ID] = make(map[string]bool)
	}
	s.enrollments[u.ID][courseID] = true

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUnenroll(c *gin.Context) {
	u := currentUser(c)
	courseID := c.Param("courseId")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enrollments[u.ID][courseID] {
		c.JSON(http.StatusNotFound, gin.H{"message": "enrollment not found"})
		return
	}

	delete(s.enrollments[u.ID], courseID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// assessmentJSON nests the question document as a JSON-encoded string,
// exactly as the backend stores and returns it.
func assessmentJSON(a *storedAssessment, includeAnswers bool) (gin.H, error) {
	questions := make([]gin.H, 0, len(a.Questions))
	for i, q := range a.Questions {
		qj := gin.H{
			"questionId":   i + 1,
			"questionText": q.Text,
			"options":      q.Options,
			"points":       q.Points,
		}
		if includeAnswers {
			qj["correctAnswer"] = q.CorrectAnswer
		}
		questions = append(questions, qj)
	}

	doc, err := json.Marshal(gin.H{"Questions": questions})
	if err != nil {
		return nil, err
	}

	return gin.H{
		"id":        a.ID,
		"courseId":  a.CourseID,
		"title":     a.Title,
		"maxScore":  a.MaxScore,
		"questions": string(doc),
	}, nil
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	s.mu.Lock()
	a, ok := s.assessments[c.Param("id")]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "assessment not found"})
		return
	}

	payload, err := assessmentJSON(a, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "marshal assessment failed"})
		return
	}

	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleCourseAssessments(c *gin.Context) {
	s.listAssessments(c, func(a *storedAssessment) bool {
		return a.CourseID == c.Param("courseId")
	})
}

func (s *Server) handleStudentAssessments(c *gin.Context) {
	u := currentUser(c)
	s.listAssessments(c, func(a *storedAssessment) bool {
		return s.enrollments[u.ID][a.CourseID]
	})
}

func (s *Server) listAssessments(c *gin.Context, keep func(*storedAssessment) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]gin.H, 0)
	for _, a := range s.assessments {
		if !keep(a) {
			continue
		}

		payload, err := assessmentJSON(a, false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "marshal assessment failed"})
			return
		}
		out = append(out, payload)
	}

	c.JSON(http.StatusOK, out)
}

func (s *Server) handleUploadQuestions(c *gin.Context) {
	u := currentUser(c)
	if u.Role != "Instructor" {
		c.JSON(http.StatusForbidden, gin.H{"message": "instructor role required"})
		return
	}

	courseID := c.PostForm("courseId")
	title := c.PostForm("title")
	maxScore, err := strconv.Atoi(c.PostForm("maxScore"))
	if err != nil || maxScore <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": gin.H{"MaxScore": []string{"MaxScore must be a positive number."}},
			"title":  "One or more validation errors occurred.",
		})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": gin.H{"File": []string{"The File field is required."}},
			"title":  "One or more validation errors occurred.",
		})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "open upload failed"})
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "read upload failed"})
		return
	}

	var doc struct {
		Questions []struct {
			QuestionText  string   `json:"questionText"`
			Options       []string `json:"options"`
			CorrectAnswer int      `json:"correctAnswer"`
			Points        int      `json:"points"`
		} `json:"Questions"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc.Questions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"title": "the file must contain a Questions array"})
		return
	}

	total := 0
	a := &storedAssessment{
		ID:       uuid.NewString(),
		CourseID: courseID,
		Title:    title,
		MaxScore: maxScore,
	}
	for _, q := range doc.Questions {
		total += q.Points
		a.Questions = append(a.Questions, storedQuestion{
			Text:          q.QuestionText,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			Points:        q.Points,
		})
	}

	if total != maxScore {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "sum of question points does not match the maximum score",
		})
		return
	}

	s.mu.Lock()
	s.assessments[a.ID] = a
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"success": true, "assessmentId": a.ID})
}

func (s *Server) handleSubmit(c *gin.Context) {
	u := currentUser(c)

	var req struct {
		UserID          string            `json:"userId"`
		AssessmentID    string            `json:"assessmentId"`
		SelectedAnswers map[string]string `json:"selectedAnswers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"title": "invalid submit payload"})
		return
	}

	if len(req.SelectedAnswers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": gin.H{"SelectedAnswers": []string{"At least one answer is required."}},
			"title":  "One or more validation errors occurred.",
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[req.AssessmentID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "assessment not found"})
		return
	}

	s.submissions = append(s.submissions, Submission{
		UserID:          req.UserID,
		AssessmentID:    req.AssessmentID,
		SelectedAnswers: req.SelectedAnswers,
	})

	score, correct := 0, 0
	var detail []gin.H
	for i, q := range a.Questions {
		given, answered := req.SelectedAnswers[strconv.Itoa(i+1)]
		want := ""
		if q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options) {
			want = q.Options[q.CorrectAnswer]
		}

		isCorrect := answered && given == want
		if isCorrect {
			score += q.Points
			correct++
		}

		if s.c.PerQuestionDetail {
			ua := given
			if !answered {
				ua = "Not answered"
			}
			detail = append(detail, gin.H{
				"question":      q.Text,
				"correctAnswer": want,
				"userAnswer":    ua,
				"isCorrect":     isCorrect,
			})
		}
	}

	rid := uuid.NewString()
	s.results = append(s.results, storedResult{
		ResultID:     rid,
		UserID:       u.ID,
		AssessmentID: a.ID,
		Score:        score,
		AttemptDate:  time.Now(),
	})

	resp := gin.H{
		"attemptId":      rid,
		"score":          score,
		"correctAnswers": correct,
		"percentage":     formatPercentage(score, a.MaxScore),
	}
	if s.c.PerQuestionDetail {
		resp["answers"] = detail
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleUserResults(c *gin.Context) {
	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]gin.H, 0)
	for _, r := range s.results {
		if r.UserID != u.ID {
			continue
		}
		out = append(out, gin.H{
			"ResultId":     r.ResultID,
			"AssessmentId": r.AssessmentID,
			"Score":        r.Score,
			"AttemptDate":  r.AttemptDate.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, out)
}

func (s *Server) courseByID(id string) (*storedCourse, bool) {
	for _, cs := range s.courses {
		if cs.ID == id {
			return cs, true
		}
	}

	return nil, false
}
