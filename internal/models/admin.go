package models

import "time"

// DashboardStats are the headline numbers on the admin dashboard.
type DashboardStats struct {
	TotalUsers        int     `json:"totalUsers"`
	TotalCourses      int     `json:"totalCourses"`
	TotalEnrollments  int     `json:"totalEnrollments"`
	TotalAssessments  int     `json:"totalAssessments"`
	TotalCertificates int     `json:"totalCertificates"`
	ActiveLearners    int     `json:"activeLearners"`
	CompletionRate    float64 `json:"completionRate"`
}

// AdminActivity is one entry of the admin activity feed.
type AdminActivity struct {
	ID          string     `json:"_id"`
	Type        string     `json:"type"`
	Action      string     `json:"action"`
	Description string     `json:"description"`
	User        Ref        `json:"user,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// Analytics is the admin analytics report.
type Analytics struct {
	Period             string             `json:"period,omitempty"`
	EnrollmentsByMonth []MonthlyCount     `json:"enrollmentsByMonth,omitempty"`
	PopularCourses     []CourseStat       `json:"popularCourses,omitempty"`
	AverageScores      map[string]float64 `json:"averageScores,omitempty"`
	PassRate           float64            `json:"passRate"`
}

// MonthlyCount is a month bucket in analytics series.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// CourseStat ranks a course by enrollments.
type CourseStat struct {
	Course      Ref    `json:"course"`
	Title       string `json:"title"`
	Enrollments int    `json:"enrollments"`
}
