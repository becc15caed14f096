package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"wileybooking.im.client/internal/errs"
	"wileybooking.im.client/internal/model"
)

// Claims 凭证内嵌的声明
// 凭证由服务端签发，客户端仅解码不验签
type Claims struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims 解析凭证声明（不验证签名，验签是服务端的职责）
// 无法解码的凭证一律视为无效
func ParseClaims(token string) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, errs.ErrCredentialInvalid.Wrap(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, errs.ErrCredentialInvalid
	}

	return claims, nil
}

// ParseExpireTime 解析凭证过期时间
func ParseExpireTime(token string) (time.Time, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errs.ErrCredentialInvalid
	}
	return claims.ExpiresAt.Time, nil
}

// Identity 从凭证声明提取当前用户身份
func (c *Claims) Identity() model.User {
	return model.User{
		ID:          c.UserID,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Role:        c.Role,
	}
}
