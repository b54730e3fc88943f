package main

import (
	_ "github.com/clevtech/vision-backend/docs"
	"github.com/clevtech/vision-backend/internal/bootstrap"
)

// @title Vision Backend API
// @version 1.0.0
// @description Keyframe object detection for uploaded videos, with document storage

// @BasePath /

func main() {
	bootstrap.Run()
}
