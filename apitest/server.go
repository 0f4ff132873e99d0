// Package apitest runs an in-process Connecto API double for end-to-end
// tests: JWT bearer auth, JSON and multipart submissions, and both historical
// feed response shapes.
package apitest

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type userRecord struct {
	ID       string
	Username string
	Email    string
	Password []byte
	Avatar   string
	Bio      string
}

type postRecord struct {
	ID        string
	Caption   string
	Image     string
	UserID    string
	CreatedAt time.Time
}

// userView is the shape auth endpoints return ("id" key).
type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// authorView is the stub embedded in posts ("_id" key).
type authorView struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type postView struct {
	ID        string     `json:"_id"`
	Caption   string     `json:"caption"`
	Image     string     `json:"image,omitempty"`
	User      authorView `json:"user"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Server is the fake API. Zero value is not usable; call New.
type Server struct {
	app    *fiber.App
	ln     net.Listener
	url    string
	secret []byte

	mu        sync.Mutex
	enveloped bool
	users     map[string]*userRecord
	byEmail   map[string]string
	posts     []*postRecord
}

// New builds the server with an empty dataset. Call Start before use.
func New() *Server {
	s := &Server{
		secret:  []byte(uuid.NewString()),
		users:   make(map[string]*userRecord),
		byEmail: make(map[string]string),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", s.register)
	auth.Post("/login", s.login)

	protected := api.Group("", s.authRequired)
	protected.Get("/users/me", s.me)
	protected.Get("/posts", s.listPosts)
	protected.Post("/posts", s.createPost)
	protected.Put("/posts/:id", s.updatePost)
	protected.Delete("/posts/:id", s.deletePost)

	s.app = app
	return s
}

// Start binds a loopback port and serves until Close.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.ln = ln
	s.url = "http://" + ln.Addr().String() + "/api"
	go func() {
		_ = s.app.Listener(ln)
	}()
	return nil
}

// URL returns the base URL including the /api prefix.
func (s *Server) URL() string { return s.url }

// Close shuts the server down.
func (s *Server) Close() error { return s.app.Shutdown() }

// SetEnveloped switches the feed response between a bare post array and a
// {"posts": [...]} envelope, mirroring the two endpoint variants the real
// backend served over time.
func (s *Server) SetEnveloped(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enveloped = v
}

// MustUser registers a user directly in the dataset and returns its id.
func (s *Server) MustUser(username, email, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &userRecord{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
		Password: hash,
	}
	s.users[rec.ID] = rec
	s.byEmail[rec.Email] = rec.ID
	return rec.ID
}

// Seed populates n fake users with one post each.
func (s *Server) Seed(n int) {
	faker := gofakeit.New(0)
	for i := 0; i < n; i++ {
		id := s.MustUser(faker.Username(), faker.Email(), faker.Password(true, true, true, false, false, 12))
		s.mu.Lock()
		s.posts = append(s.posts, &postRecord{
			ID:        uuid.NewString(),
			Caption:   faker.Sentence(8),
			UserID:    id,
			CreatedAt: time.Now().Add(-time.Duration(n-i) * time.Minute),
		})
		s.mu.Unlock()
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message})
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), "multipart/form-data")
}

func (s *Server) register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	hasAvatar := false
	if isMultipart(c) {
		req.Username = c.FormValue("username")
		req.Email = c.FormValue("email")
		req.Password = c.FormValue("password")
		if _, err := c.FormFile("image"); err == nil {
			hasAvatar = true
		}
	} else if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Username, email, and password are required")
	}

	s.mu.Lock()
	_, exists := s.byEmail[req.Email]
	s.mu.Unlock()
	if exists {
		return fail(c, fiber.StatusConflict, "User already exists")
	}

	id := s.MustUser(req.Username, req.Email, req.Password)
	if hasAvatar {
		s.mu.Lock()
		s.users[id].Avatar = "/uploads/" + uuid.NewString()
		s.mu.Unlock()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created successfully!",
	})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	s.mu.Lock()
	id, ok := s.byEmail[req.Email]
	var user *userRecord
	if ok {
		user = s.users[id]
	}
	s.mu.Unlock()

	if user == nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(req.Password)); err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  viewOf(user),
	})
}

func (s *Server) generateToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": "connecto-api",
		"exp": now.Add(time.Hour * 24 * 7).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Server) authRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	tokenString := ""
	if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
		tokenString = parts[1]
	}
	if tokenString == "" {
		return fail(c, fiber.StatusUnauthorized, "Authorization required")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "Invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return fail(c, fiber.StatusUnauthorized, "Invalid subject claim")
	}

	s.mu.Lock()
	_, known := s.users[sub]
	s.mu.Unlock()
	if !known {
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired token")
	}

	c.Locals("userID", sub)
	return c.Next()
}

func (s *Server) me(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[userID]
	posts := make([]postView, 0)
	for _, p := range s.posts {
		if p.UserID == userID {
			posts = append(posts, s.viewOfPost(p))
		}
	}

	return c.JSON(fiber.Map{
		"user":  viewOf(user),
		"posts": posts,
	})
}

func (s *Server) listPosts(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]*postRecord, len(s.posts))
	copy(sorted, s.posts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	views := make([]postView, 0, len(sorted))
	for _, p := range sorted {
		views = append(views, s.viewOfPost(p))
	}

	if s.enveloped {
		return c.JSON(fiber.Map{"posts": views})
	}
	return c.JSON(views)
}

func (s *Server) createPost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	caption := ""
	image := ""
	if isMultipart(c) {
		caption = c.FormValue("caption")
		if _, err := c.FormFile("image"); err == nil {
			image = "/uploads/" + uuid.NewString()
		}
	} else {
		var req struct {
			Caption string `json:"caption"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
		caption = req.Caption
	}

	if strings.TrimSpace(caption) == "" && image == "" {
		return fail(c, fiber.StatusBadRequest, "Post needs a caption or an image")
	}

	post := &postRecord{
		ID:        uuid.NewString(),
		Caption:   caption,
		Image:     image,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.posts = append(s.posts, post)
	view := s.viewOfPost(post)
	s.mu.Unlock()

	return c.Status(fiber.StatusCreated).JSON(view)
}

func (s *Server) updatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	postID := c.Params("id")

	var req struct {
		Caption string `json:"caption"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	post := s.findPost(postID)
	if post == nil {
		return fail(c, fiber.StatusNotFound, fmt.Sprintf("Post %s not found", postID))
	}
	if post.UserID != userID {
		return fail(c, fiber.StatusForbidden, "You can only update your own posts")
	}

	post.Caption = req.Caption
	return c.JSON(s.viewOfPost(post))
}

func (s *Server) deletePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	postID := c.Params("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	post := s.findPost(postID)
	if post == nil {
		return fail(c, fiber.StatusNotFound, fmt.Sprintf("Post %s not found", postID))
	}
	if post.UserID != userID {
		return fail(c, fiber.StatusForbidden, "You can only delete your own posts")
	}

	kept := s.posts[:0]
	for _, p := range s.posts {
		if p.ID != postID {
			kept = append(kept, p)
		}
	}
	s.posts = kept
	return c.SendStatus(fiber.StatusNoContent)
}

// findPost must be called with s.mu held.
func (s *Server) findPost(id string) *postRecord {
	for _, p := range s.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// viewOfPost must be called with s.mu held.
func (s *Server) viewOfPost(p *postRecord) postView {
	view := postView{
		ID:        p.ID,
		Caption:   p.Caption,
		Image:     p.Image,
		CreatedAt: p.CreatedAt,
	}
	if author := s.users[p.UserID]; author != nil {
		view.User = authorView{ID: author.ID, Username: author.Username, Avatar: author.Avatar}
	}
	return view
}

func viewOf(u *userRecord) userView {
	return userView{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Bio:      u.Bio,
	}
}
