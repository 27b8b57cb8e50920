package verify

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/backend"
	"github.com/BaSui01/debateflow/types"
)

// 置信度的两路权重:事实核查 0.6,对抗测试 0.4。
const (
	accuracyWeight = 0.6
	passRateWeight = 0.4
)

// Config 配置验证子系统。
type Config struct {
	// Verifiers 是候选验证 Agent,按序轮转使用。
	Verifiers []types.AgentID `json:"verifiers" yaml:"verifiers"`

	// SensitiveCategories 触发自动验证的问题类别。
	SensitiveCategories []types.Category `json:"sensitive_categories" yaml:"sensitive_categories"`

	// ConfidenceFloor 以下的结果打 Flagged 标记。
	ConfidenceFloor float64 `json:"confidence_floor" yaml:"confidence_floor"`

	// Timeout 是单次验证调用的上限。
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxConcurrency 限制验证调用的并发度。
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`
}

// DefaultConfig 返回验证子系统默认配置。
func DefaultConfig() Config {
	return Config{
		Verifiers: []types.AgentID{
			types.AgentClaude,
			types.AgentDeepSeek,
		},
		SensitiveCategories: []types.Category{
			types.CategorySecurity,
			types.CategoryFinancial,
			types.CategoryProductionInfra,
		},
		ConfidenceFloor: 0.7,
		Timeout:         60 * time.Second,
		MaxConcurrency:  3,
	}
}

// Verifier 执行事实核查与对抗测试并聚合置信度。
type Verifier struct {
	caller   backend.Caller
	registry *types.Registry
	cfg      Config
	logger   *zap.Logger
}

// New 创建验证器。caller 为 nil 时验证能力不可用,Verify 恒报错。
func New(caller backend.Caller, registry *types.Registry, cfg Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if len(cfg.Verifiers) == 0 {
		cfg.Verifiers = def.Verifiers
	}
	if len(cfg.SensitiveCategories) == 0 {
		cfg.SensitiveCategories = def.SensitiveCategories
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = def.ConfidenceFloor
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}

	return &Verifier{
		caller:   caller,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "verify")),
	}
}

// Required 报告该问题类别是否触发自动验证。
func (v *Verifier) Required(analysis types.QuestionAnalysis) bool {
	for _, cat := range v.cfg.SensitiveCategories {
		if analysis.Category == cat {
			return true
		}
	}
	return false
}

// Verify 对合成答案做两路独立复核并聚合置信度。winner 用于在花名册
// 允许时把获胜 Agent 排除出验证者集合。两路检查全部失败才报错;
// 部分失败按可用结果聚合。
func (v *Verifier) Verify(ctx context.Context, question, answer string, winner types.AgentID, analysis types.QuestionAnalysis) (types.VerificationResult, error) {
	if v.caller == nil {
		return types.VerificationResult{}, types.NewError(types.ErrConfiguration, "verification requires a completion caller")
	}

	verifiers := v.pickVerifiers(winner)
	if len(verifiers) == 0 {
		return types.VerificationResult{}, types.NewError(types.ErrConfiguration, "no verifier agents available")
	}

	scores := v.factCheck(ctx, question, answer, verifiers)
	outcomes := v.runChallenges(ctx, question, answer, verifiers)

	if len(scores) == 0 && len(outcomes) == 0 {
		return types.VerificationResult{}, types.NewError(types.ErrVerificationFailed, "all verifier calls failed")
	}

	result := types.VerificationResult{
		Required:    v.Required(analysis),
		PerVerifier: scores,
	}

	// 事实核查:各验证者加权分的平均,0-100
	if len(scores) > 0 {
		sum := 0.0
		for _, s := range scores {
			sum += s.Weighted
		}
		result.FactAccuracy = round2(sum / float64(len(scores)))
	}

	// 对抗测试:未能执行的挑战不计入总数
	var issues []string
	for _, oc := range outcomes {
		result.ChallengesTotal++
		if oc.passed {
			result.ChallengesPassed++
			continue
		}
		issues = append(issues, oc.issue())
	}

	passRate := result.FactAccuracy / 100
	if result.ChallengesTotal > 0 {
		passRate = float64(result.ChallengesPassed) / float64(result.ChallengesTotal)
	}

	result.Confidence = round2(accuracyWeight*result.FactAccuracy/100 + passRateWeight*passRate)
	if result.Confidence < v.cfg.ConfidenceFloor {
		result.Flagged = true
		if len(issues) == 0 {
			issues = append(issues, "aggregate confidence below configured floor")
		}
	}
	result.Issues = issues

	v.logger.Debug("验证完成",
		zap.Float64("fact_accuracy", result.FactAccuracy),
		zap.Int("challenges_passed", result.ChallengesPassed),
		zap.Int("challenges_total", result.ChallengesTotal),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("flagged", result.Flagged))

	return result, nil
}

// pickVerifiers 过滤出花名册内的验证者并排除获胜 Agent。花名册太小
// 排除后为空时,退回整个验证者列表,获胜者自检好过不检。
func (v *Verifier) pickVerifiers(winner types.AgentID) []types.AgentID {
	available := make([]types.AgentID, 0, len(v.cfg.Verifiers))
	for _, id := range v.cfg.Verifiers {
		if v.registry != nil && !v.registry.Has(id) {
			v.logger.Warn("验证者不在花名册中,忽略", zap.String("agent", string(id)))
			continue
		}
		available = append(available, id)
	}

	distinct := make([]types.AgentID, 0, len(available))
	for _, id := range available {
		if id != winner {
			distinct = append(distinct, id)
		}
	}
	if len(distinct) > 0 {
		return distinct
	}
	return available
}

// round2 保留两位小数。
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp 把 value 限制在 [min, max] 区间。
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
