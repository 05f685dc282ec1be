package server

//go:generate swag init -g internal/server/swagger.go -o docs/swagger

// @title TruthInListings Dashboard API
// @version 0.1
// @description JSON and WebSocket endpoints of the fraud-detection dashboard. The HTML views are not listed.
// @contact.name TruthInListings Maintainers
// @BasePath /
