package workflow

import (
	"context"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// WorkflowConfig 工作流描述的配置文件, yaml或json都可以(json是yaml的子集)
// 节点和link之间通过标题引用
type WorkflowConfig struct {
	Title       string        `json:"title" yaml:"title" validate:"required"`
	InitialNode string        `json:"initial_node" yaml:"initial_node"` // 节点标题, 可选
	Nodes       []*NodeConfig `json:"nodes" yaml:"nodes" validate:"dive,required"`
	Links       []*LinkConfig `json:"links" yaml:"links" validate:"dive,required"`
}

type NodeConfig struct {
	Title      string   `json:"title" yaml:"title" validate:"required,max=255"`
	IsFinal    bool     `json:"is_final" yaml:"is_final"`
	Authorized []string `json:"authorized" yaml:"authorized"`
}

type LinkConfig struct {
	Title     string   `json:"title" yaml:"title" validate:"required,max=255"`
	From      string   `json:"from" yaml:"from"` // 为空表示开始位置
	To        string   `json:"to" yaml:"to" validate:"required"`
	ItemTypes []string `json:"item_types" yaml:"item_types"`
}

func ParseWorkflowConfig(data []byte) (*WorkflowConfig, error) {
	config := &WorkflowConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(ErrParamInvalid, "ParseWorkflowConfig failed, err: %v", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 结构校验, 以及标题唯一和引用的节点存在
func (c *WorkflowConfig) Validate() error {
	if err := validatorUtil.Struct(c); err != nil {
		return errors.Wrapf(ErrParamInvalid, "invalid workflow config, err: %v", err)
	}
	nodeTitles := make(map[string]struct{}, len(c.Nodes))
	for _, node := range c.Nodes {
		if _, ok := nodeTitles[node.Title]; ok {
			return errors.WithMessagef(ErrDuplicateTitle, "node title %q", node.Title)
		}
		nodeTitles[node.Title] = struct{}{}
	}
	if c.InitialNode != "" {
		if _, ok := nodeTitles[c.InitialNode]; !ok {
			return errors.WithMessagef(ErrNodeNotFound, "initial node %q", c.InitialNode)
		}
	}
	linkTitles := make(map[string]struct{}, len(c.Links))
	for _, link := range c.Links {
		if _, ok := linkTitles[link.Title]; ok {
			return errors.WithMessagef(ErrDuplicateTitle, "link title %q", link.Title)
		}
		linkTitles[link.Title] = struct{}{}
		if link.From != "" {
			if _, ok := nodeTitles[link.From]; !ok {
				return errors.WithMessagef(ErrNodeNotFound, "link %q from node %q", link.Title, link.From)
			}
		}
		if _, ok := nodeTitles[link.To]; !ok {
			return errors.WithMessagef(ErrNodeNotFound, "link %q to node %q", link.Title, link.To)
		}
	}
	return nil
}

// ImportWorkflowConfig 按配置创建项目的工作流描述, 项目已经有描述时返回 ErrParamInvalid
func (s *WorkflowGraphServiceImpl) ImportWorkflowConfig(ctx context.Context, projectID string, config *WorkflowConfig) (*WorkflowDescription, error) {
	if config == nil {
		return nil, errors.WithMessage(ErrParamInvalid, "ImportWorkflowConfig: nil config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	var ret *WorkflowDescription
	err := s.lock.NonBlockingSynchronized(ctx, DescriptionLockKey(projectID), defaultLockDuration, func(ctx context.Context) error {
		return s.repo.Transaction(ctx, func(ctx context.Context) error {
			_, err := s.repo.FindWorkflowDescription(ctx, projectID)
			if err == nil {
				return errors.WithMessagef(ErrParamInvalid, "project %q already has a workflow description", projectID)
			}
			if !errors.Is(err, ErrWorkflowDescriptionNotFound) {
				return err
			}
			description, err := s.repo.CreateWorkflowDescription(ctx, &WorkflowDescription{
				ProjectID: projectID,
				Title:     config.Title,
			})
			if err != nil {
				return err
			}
			nodeIDs := make(map[string]string, len(config.Nodes))
			for _, nodeConfig := range config.Nodes {
				node, err := s.repo.SaveNode(ctx, &WorkflowNodeDescription{
					WorkflowDescriptionID: description.ID,
					Title:                 nodeConfig.Title,
					IsFinal:               nodeConfig.IsFinal,
					AuthorizedIDs:         UniqueStr(nodeConfig.Authorized),
				})
				if err != nil {
					return err
				}
				nodeIDs[node.Title] = node.ID
				description.Nodes = append(description.Nodes, node)
			}
			for _, linkConfig := range config.Links {
				link, err := s.repo.SaveLink(ctx, &WorkflowLinkDescription{
					WorkflowDescriptionID: description.ID,
					Title:                 linkConfig.Title,
					InitialNodeID:         nodeIDs[linkConfig.From],
					FinalNodeID:           nodeIDs[linkConfig.To],
					ItemTypes:             UniqueStr(linkConfig.ItemTypes),
				})
				if err != nil {
					return err
				}
				description.Links = append(description.Links, link)
			}
			if config.InitialNode != "" {
				description.InitialNodeID = nodeIDs[config.InitialNode]
				if err := s.repo.UpdateInitialNode(ctx, description.ID, description.InitialNodeID); err != nil {
					return err
				}
				description.Version++
			}
			ret = description
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "ImportWorkflowConfig failed, projectID: %q", projectID)
	}
	return ret, nil
}
