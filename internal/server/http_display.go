package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET    /health                                  - Health check")
	fmt.Println("  GET    /stats                                   - Server statistics")
	fmt.Println("  POST   /api/workflows                           - Create a workflow session")
	fmt.Println("  GET    /api/workflows/{id}                      - Poll workflow state")
	fmt.Println("  DELETE /api/workflows/{id}                      - Discard a workflow")
	fmt.Println("  POST   /api/workflows/{id}/upload               - Upload a resume")
	fmt.Println("  GET    /api/workflows/{id}/auth/url             - Google sign-in URL")
	fmt.Println("  POST   /api/workflows/{id}/auth/callback        - Complete sign-in")
	fmt.Println("  POST   /api/workflows/{id}/parse                - Parse and score the resume")
	fmt.Println("  POST   /api/workflows/{id}/payment/discount     - Validate a discount code")
	fmt.Println("  POST   /api/workflows/{id}/payment/intent       - Create a payment intent")
	fmt.Println("  POST   /api/workflows/{id}/payment/confirm      - Confirm payment")
	fmt.Println("  GET    /api/workflows/{id}/interview/events     - Interview updates (websocket)")
	fmt.Println("  POST   /api/workflows/{id}/interview/start      - Start the voice interview")
	fmt.Println("  POST   /api/workflows/{id}/interview/pause      - Pause the interview")
	fmt.Println("  POST   /api/workflows/{id}/interview/resume     - Resume the interview")
	fmt.Println("  POST   /api/workflows/{id}/interview/continue   - Continue after inactivity prompt")
	fmt.Println("  POST   /api/workflows/{id}/interview/finish     - Finish and rewrite")
	fmt.Println("  POST   /api/workflows/{id}/rewrite/retry        - Retry a failed rewrite")
	fmt.Println("  PUT    /api/workflows/{id}/resume               - Edit the rewritten resume")
	fmt.Println("  POST   /api/workflows/{id}/restart              - Start over")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if len(s.APIKeys) > 0 {
		fmt.Printf("API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Println("Include 'X-API-Key: <your-key>' header in requests to /api endpoints")
	} else {
		fmt.Println("API authentication: DISABLED (no API keys configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Println("  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
	}
}
