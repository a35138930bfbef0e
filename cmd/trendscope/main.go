package main

import (
	"trendscope/cmd/handlers"
	"trendscope/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
