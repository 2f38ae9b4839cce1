package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/trainconfig"
)

var (
	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

func printSummary(cfg *trainconfig.Config, env *trainconfig.EnvOverrides) {
	model := &cfg.Model.ModelConfig
	schedule := &cfg.Optimizer.LearningRateScheduler
	parallel := &cfg.Parallelism
	numParams := model.NumParameters()

	fmt.Println(titleStyle.Render("Run"))
	table := newPlainTable()
	table.Row("project", cfg.General.Project)
	table.Row("run", cfg.General.ExpandRunName(time.Now(), env.JobID))
	table.Row("seed", fmt.Sprintf("%d", cfg.General.Seed))
	table.Row("tokenizer", cfg.Tokenizer.TokenizerNameOrPath)
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Model"))
	table = newPlainTable()
	table.Row("parameters", fmt.Sprintf("%s (%s)", shortCount(numParams), humanize.Comma(numParams)))
	table.Row("layers", humanize.Comma(int64(model.NumHiddenLayers)))
	table.Row("hidden size", humanize.Comma(int64(model.HiddenSize)))
	table.Row("heads", fmt.Sprintf("%d query / %d key-value (head dim %d)",
		model.NumAttentionHeads, model.NumKeyValueHeads, model.HeadDim()))
	table.Row("feed-forward", humanize.Comma(int64(model.IntermediateSize)))
	table.Row("vocabulary", vocabDescription(&cfg.Model))
	table.Row("activation", model.HiddenAct.String())
	table.Row("dtype", cfg.Model.Dtype.String())
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Training"))
	table = newPlainTable()
	table.Row("steps", humanize.Comma(int64(cfg.Tokens.TrainSteps)))
	table.Row("sequence length", humanize.Comma(int64(cfg.Tokens.SequenceLength)))
	table.Row("global batch", fmt.Sprintf("%s sequences (%d micro x %d accumulation x %d dp)",
		humanize.Comma(cfg.Tokens.GlobalBatchSize(parallel.DP)),
		cfg.Tokens.MicroBatchSize, cfg.Tokens.BatchAccumulationPerReplica, parallel.DP))
	table.Row("tokens/step", humanize.Comma(cfg.TokensPerStep()))
	table.Row("total tokens", fmt.Sprintf("%s (%s)",
		shortCount(cfg.TotalTrainingTokens()), humanize.Comma(cfg.TotalTrainingTokens())))
	table.Row("optimizer", optimizerDescription(&cfg.Optimizer))
	table.Row("schedule", scheduleDescription(schedule))
	table.Row("topology", fmt.Sprintf("%d devices (dp=%d tp=%d pp=%d, %s, %s)",
		parallel.WorldSize(), parallel.DP, parallel.TP, parallel.PP,
		parallel.TPMode, parallel.PPEngine))
	table.Row("checkpoints", fmt.Sprintf("every %s steps to %s",
		humanize.Comma(int64(cfg.Checkpoints.CheckpointInterval)), cfg.Checkpoints.CheckpointsPath))
	fmt.Println(table.Render())
}

// shortCount renders a count the way model sizes are usually quoted: 8.0B,
// 70B, 125M, ...
func shortCount(n int64) string {
	switch {
	case n >= 1e12:
		return fmt.Sprintf("%.1fT", float64(n)/1e12)
	case n >= 1e9:
		return fmt.Sprintf("%.1fB", float64(n)/1e9)
	case n >= 1e6:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1e3:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	}
	return fmt.Sprintf("%d", n)
}

func vocabDescription(model *trainconfig.ModelSettings) string {
	padded := model.PaddedVocabSize()
	if padded == model.ModelConfig.VocabSize {
		return humanize.Comma(int64(padded))
	}
	return fmt.Sprintf("%s (padded from %s)",
		humanize.Comma(int64(padded)), humanize.Comma(int64(model.ModelConfig.VocabSize)))
}

func optimizerDescription(opt *trainconfig.OptimizerConfig) string {
	factory := &opt.OptimizerFactory
	desc := fmt.Sprintf("%s (betas %g/%g, eps %g", factory.Name, factory.AdamBeta1, factory.AdamBeta2, factory.AdamEps)
	if opt.WeightDecay > 0 {
		desc += fmt.Sprintf(", weight decay %g", opt.WeightDecay)
	}
	if opt.ClipGrad > 0 {
		desc += fmt.Sprintf(", clip %g", opt.ClipGrad)
	}
	if opt.ZeroStage > 0 {
		desc += fmt.Sprintf(", ZeRO stage %d", opt.ZeroStage)
	}
	return desc + ")"
}

func scheduleDescription(s *trainconfig.LearningRateSchedule) string {
	desc := fmt.Sprintf("peak %g", s.LearningRate)
	if s.LRWarmupSteps > 0 {
		desc += fmt.Sprintf(", %s warmup over %s steps",
			s.LRWarmupStyle, humanize.Comma(int64(s.LRWarmupSteps)))
	}
	return desc + fmt.Sprintf(", %s decay to %g", s.LRDecayStyle, s.MinDecayLR)
}
