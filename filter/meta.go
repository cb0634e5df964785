package filter

import "github.com/pkg/errors"

var (
	ErrFilterNotFound = errors.New("filter spec not found")
	// ErrFavoriteLimitExceeded 收藏数量已经达到上限, 不做任何修改
	ErrFavoriteLimitExceeded = errors.New("favorite limit exceeded")
	// ErrDuplicateFilterName 同一个owner下过滤器名字重复
	ErrDuplicateFilterName = errors.New("duplicate filter name")
)

// DefaultFavoriteLimit 每个用户最多收藏的过滤器数量
const DefaultFavoriteLimit = 3
