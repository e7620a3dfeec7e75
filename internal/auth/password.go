package auth

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const MaxPasswordBytes = 72

//go:embed common_passwords.txt
var commonPasswordsRaw string

var commonPasswords = loadCommonPasswords(commonPasswordsRaw)

func loadCommonPasswords(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		if p := strings.ToLower(strings.TrimSpace(scanner.Text())); p != "" {
			set[p] = struct{}{}
		}
	}
	return set
}

// HashPassword は平文パスワードを指定コストのbcryptハッシュに変換する。
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword はハッシュと平文パスワードが一致するかを返す。
func CheckPassword(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

var attributeSplitter = regexp.MustCompile(`\W+`)

// ValidatePassword はパスワードポリシーを検証し、違反内容のメッセージを返す。
// attrsにはメールアドレスや表示名など、パスワードに含めるべきでない値を渡す。
// 違反がない場合はnilを返す。
func ValidatePassword(password string, attrs ...string) []string {
	var problems []string

	if tooSimilar(password, attrs) {
		problems = append(problems, "パスワードがユーザー情報と似すぎています。")
	}
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("パスワードは%d文字以上にしてください。", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		problems = append(problems, fmt.Sprintf("パスワードは%dバイト以内にしてください。", MaxPasswordBytes))
	}
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		problems = append(problems, "よく使われるパスワードは使用できません。")
	}
	if password != "" && isAllDigits(password) {
		problems = append(problems, "数字だけのパスワードは使用できません。")
	}

	return problems
}

// tooSimilar はパスワードが属性値またはその構成要素と一致・包含関係にあるかを判定する。
// メールアドレスはローカル部とドメインも個別に比較する。
func tooSimilar(password string, attrs []string) bool {
	pw := strings.ToLower(password)
	if pw == "" {
		return false
	}

	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		candidates := []string{attr}
		if local, _, ok := strings.Cut(attr, "@"); ok {
			candidates = append(candidates, local)
		}
		candidates = append(candidates, attributeSplitter.Split(attr, -1)...)

		for _, c := range candidates {
			if c == pw {
				return true
			}
			if len([]rune(c)) >= 4 && (strings.Contains(pw, c) || strings.Contains(c, pw)) {
				return true
			}
		}
	}
	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
