package api

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleGetHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.limiter.Middleware())
	{
		v1.GET("/status", s.handleGetStatus)
		v1.GET("/market/snapshot", s.handleGetMarketSnapshot)

		users := v1.Group("/users/:user_id")
		{
			users.GET("/profile", s.handleGetProfile)
			users.PUT("/profile", s.handlePutProfile)

			users.POST("/biometrics", s.handleIngestBiometrics)
			users.POST("/transactions", s.handleIngestTransaction)

			users.POST("/interventions/check", s.handleCheckIntervention)
			users.POST("/interventions/:intervention_id/outcome", s.handleRecordOutcome)
			users.GET("/dashboard", s.handleGetDashboard)

			users.GET("/recommendation", s.handleGetRecommendation)
			users.GET("/risk", s.handleGetRiskAssessment)
			users.GET("/risk/evaluations", s.handleListRiskEvaluations)
		}
	}
}
