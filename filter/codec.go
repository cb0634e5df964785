package filter

import (
	"encoding/base64"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// 确定性编码, 相同的过滤器得到相同的token
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("filter: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 4096,
	}.DecMode()
	if err != nil {
		panic("filter: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshalCriteria(c *Criteria) ([]byte, error) {
	return encMode.Marshal(c)
}

func unmarshalCriteria(data []byte) (*Criteria, error) {
	c := &Criteria{}
	if len(data) == 0 {
		return c, nil
	}
	if err := decMode.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeToken 只用一次的过滤器编码成url安全的token, 在请求之间传递
// 只编码过滤条件和owner, 不包含保存相关的字段
func EncodeToken(spec *Spec) (string, error) {
	if spec == nil {
		return "", errors.WithMessage(workflow.ErrParamInvalid, "EncodeToken: nil spec")
	}
	token := &Spec{OwnerID: spec.OwnerID}
	token.applyCriteria(spec.criteria())
	data, err := encMode.Marshal(token)
	if err != nil {
		return "", errors.WithMessage(err, "EncodeToken marshal failed")
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeToken(token string) (*Spec, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.Wrapf(workflow.ErrParamInvalid, "DecodeToken: invalid base64, err: %v", err)
	}
	spec := &Spec{}
	if err := decMode.Unmarshal(data, spec); err != nil {
		return nil, errors.Wrapf(workflow.ErrParamInvalid, "DecodeToken: invalid cbor, err: %v", err)
	}
	// token中的过滤器总是没有保存的
	spec.ID = ""
	spec.Name = ""
	spec.Favorite = false
	spec.Version = 0
	return spec, nil
}
