package http

import (
	"net/http"

	"lifeassistant/internal/log"
)

type loginPage struct {
	page
	Error string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.auth.Lookup(r); ok && sess.Authenticated() {
		redirect(w, r, "/")
		return
	}
	s.render(w, r, http.StatusOK, "login", loginPage{page: s.newPage("Life Assistant", "")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	password, err := formValue(w, r, "password", 0)
	if err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if _, ok := s.auth.Login(w, r, password); !ok {
		s.render(w, r, http.StatusUnauthorized, "login", loginPage{
			page:  s.newPage("Life Assistant", ""),
			Error: "Incorrect password",
		})
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(w, r)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Logged out")
	redirect(w, r, "/login")
}

type homePage struct {
	page
	BudgetConnected bool
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "home", homePage{
		page:            s.newPage("Life Assistant", "home"),
		BudgetConnected: s.budget != nil && s.budget.Connected(),
	})
}
