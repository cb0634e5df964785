// Package defaultworkflow 系统默认工作流描述, 项目没有自己的描述时使用
package defaultworkflow

import (
	"context"
	_ "embed"

	"github.com/blingmoon/itemflow/workflow"
	"github.com/pkg/errors"
)

//go:embed default.yaml
var defaultConfig []byte

// Config 默认描述的配置, authorizedIDs 授权到所有非终止节点
func Config(authorizedIDs ...string) (*workflow.WorkflowConfig, error) {
	config, err := workflow.ParseWorkflowConfig(defaultConfig)
	if err != nil {
		return nil, errors.WithMessage(err, "parse default workflow config failed")
	}
	for _, node := range config.Nodes {
		if node.IsFinal {
			continue
		}
		node.Authorized = append(node.Authorized, authorizedIDs...)
	}
	return config, nil
}

// Seed 默认描述不存在时导入, 已经存在时直接返回已有的
func Seed(ctx context.Context, graph workflow.WorkflowGraphService, authorizedIDs ...string) (*workflow.WorkflowDescription, error) {
	existing, err := graph.FindWorkflowDescription(ctx, "")
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, workflow.ErrWorkflowDescriptionNotFound) {
		return nil, err
	}
	config, err := Config(authorizedIDs...)
	if err != nil {
		return nil, err
	}
	return graph.ImportWorkflowConfig(ctx, "", config)
}
