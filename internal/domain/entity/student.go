package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Роли студентов
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Student представляет зарегистрированного студента
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      string    `gorm:"size:20;not null;default:'student'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Student) TableName() string {
	return "students"
}

// IsAdmin сообщает, что студент имеет права администратора
func (s *Student) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// BeforeSave хеширует пароль перед сохранением, только если он не является bcrypt-хешем
func (s *Student) BeforeSave(tx *gorm.DB) error {
	if len(s.Password) > 0 && !strings.HasPrefix(s.Password, "$2a$") &&
		!strings.HasPrefix(s.Password, "$2b$") && !strings.HasPrefix(s.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(s.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[Student.BeforeSave] Ошибка при хешировании пароля для email=%s: %v", s.Email, err)
			return err
		}
		s.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword проверяет, соответствует ли переданный пароль хешу
func (s *Student) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(s.Password), []byte(password)) == nil
}
